package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps cron with second-granularity specs. Entries are chained
// with SkipIfStillRunning, so a tick due while the previous one is still
// going is skipped rather than overlapped.
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		_ = job(ctx)
	})
	return err
}

// AddInterval schedules a job on a fixed period.
func (s *Scheduler) AddInterval(interval time.Duration, job func(context.Context) error) error {
	return s.AddJob("@every "+interval.String(), job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
