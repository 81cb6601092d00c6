package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		Convey("New function", func() {
			s := New()

			Convey("It should create a scheduler successfully", func() {
				So(s, ShouldNotBeNil)
				So(s.cron, ShouldNotBeNil)
			})
		})

		Convey("AddJob function", func() {
			s := New()

			Convey("When adding a job with a valid cron spec", func() {
				var runs atomic.Int32
				err := s.AddJob("* * * * * *", func(ctx context.Context) error {
					runs.Add(1)
					return nil
				})

				Convey("It should run the job on schedule", func() {
					So(err, ShouldBeNil)

					s.Start()
					time.Sleep(2 * time.Second)
					s.Stop()

					So(runs.Load(), ShouldBeGreaterThan, 0)
				})
			})

			Convey("When adding a job with an invalid cron spec", func() {
				err := s.AddJob("invalid spec", func(ctx context.Context) error { return nil })

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "expected exactly 6 fields")
				})
			})
		})

		Convey("AddInterval function", func() {
			s := New()

			Convey("When scheduling a job on a fixed period", func() {
				var runs atomic.Int32
				err := s.AddInterval(500*time.Millisecond, func(ctx context.Context) error {
					runs.Add(1)
					return nil
				})

				Convey("It should fire repeatedly until stopped", func() {
					So(err, ShouldBeNil)

					s.Start()
					time.Sleep(1800 * time.Millisecond)
					s.Stop()

					So(runs.Load(), ShouldBeGreaterThanOrEqualTo, 2)
				})
			})
		})

		Convey("Overlap protection", func() {
			s := New()

			Convey("When a job outlives its own interval", func() {
				var running atomic.Int32
				var overlapped atomic.Int32
				err := s.AddInterval(200*time.Millisecond, func(ctx context.Context) error {
					if running.Add(1) > 1 {
						overlapped.Add(1)
					}
					time.Sleep(600 * time.Millisecond)
					running.Add(-1)
					return nil
				})

				Convey("Due ticks should be skipped, not stacked", func() {
					So(err, ShouldBeNil)

					s.Start()
					time.Sleep(2 * time.Second)
					s.Stop()

					So(overlapped.Load(), ShouldEqual, 0)
				})
			})
		})

		Convey("Stop method", func() {
			s := New()

			var runs atomic.Int32
			err := s.AddJob("* * * * * *", func(ctx context.Context) error {
				runs.Add(1)
				return nil
			})
			So(err, ShouldBeNil)

			Convey("After stopping no further executions should happen", func() {
				s.Start()
				time.Sleep(1500 * time.Millisecond)
				s.Stop()

				settled := runs.Load()
				time.Sleep(2 * time.Second)
				So(runs.Load(), ShouldEqual, settled)
			})
		})
	})
}
