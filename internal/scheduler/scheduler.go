package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/nexview/radarsync/internal/archive"
	"github.com/nexview/radarsync/internal/view"
)

// cleanupInterval is how often expired archive files are purged.
const cleanupInterval = time.Hour

// Scheduler periodically refreshes loaded layers and prunes the frame
// archive.
type Scheduler struct {
	scheduler *gocron.Scheduler
	session   *view.Session
	store     *archive.Store
	interval  time.Duration
}

// New creates a new Scheduler.
func New(session *view.Session, store *archive.Store, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		session:   session,
		store:     store,
		interval:  interval,
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 300
	}

	_, err := s.scheduler.Every(seconds).Seconds().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.session.AutoRefresh(ctx); err != nil {
			log.Printf("scheduler: refresh failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	if s.store != nil {
		_, err = s.scheduler.Every(int(cleanupInterval.Seconds())).Seconds().Do(func() {
			if n := s.store.Cleanup(); n > 0 {
				log.Printf("scheduler: purged %d expired frames", n)
			}
		})
		if err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
