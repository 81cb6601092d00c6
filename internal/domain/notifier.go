package domain

import "context"

// Notifier reports job outcomes and sweep results to an external channel.
// Notification failures never affect job state.
type Notifier interface {
	NotifyJob(ctx context.Context, job Job) error
	NotifySweep(ctx context.Context, deleted, failed int) error
}
