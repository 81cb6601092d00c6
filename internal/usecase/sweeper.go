package usecase

import (
	"context"
	"time"

	"github.com/kevinnadar22/mongovault/internal/domain"
)

// Sweeper deletes archives older than the retention age. Each tick stands
// alone: it lists the whole store and never assumes what earlier ticks saw.
type Sweeper struct {
	store     domain.ArchiveStore
	notifiers []domain.Notifier
	logger    Logger
	maxAge    time.Duration
}

func NewSweeper(
	store domain.ArchiveStore,
	notifiers []domain.Notifier,
	logger Logger,
	retentionHours int,
) *Sweeper {
	return &Sweeper{
		store:     store,
		notifiers: notifiers,
		logger:    logger,
		maxAge:    time.Duration(retentionHours) * time.Hour,
	}
}

func (s *Sweeper) Execute(ctx context.Context) error {
	archives, err := s.store.List(ctx)
	if err != nil {
		s.logger.Errorf("Sweep aborted, cannot list archives: %v", err)
		return err
	}

	cutoff := time.Now().Add(-s.maxAge)
	deleted, failed := 0, 0

	for _, archive := range archives {
		if !archive.CreatedAt.Before(cutoff) {
			continue
		}

		s.logger.Infof("Deleting expired archive %s (age %s)",
			archive.ID, time.Since(archive.CreatedAt).Round(time.Minute))

		// One stubborn archive must not stop the rest of the sweep.
		if err := s.store.Delete(ctx, archive.ID); err != nil {
			s.logger.Errorf("Failed to delete archive %s: %v", archive.ID, err)
			failed++
			continue
		}
		deleted++
	}

	if deleted > 0 || failed > 0 {
		s.logger.Infof("Sweep finished: %d deleted, %d failed", deleted, failed)
	}

	for _, n := range s.notifiers {
		if err := n.NotifySweep(ctx, deleted, failed); err != nil {
			s.logger.Warnf("notification failed: %v", err)
		}
	}

	return nil
}
