package game

import (
	"context"
	"time"

	"github.com/almajlis/backend/internal/config"
	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

const reaperBatch = 100

// StartStaleMatchReaper schedules a job that ends matches left open longer
// than the configured stale age. The age is read on every run, so a runtime
// change applies from the next run and a value <= 0 pauses the sweep without
// stopping the scheduler. The scheduler shuts down when ctx is cancelled.
func StartStaleMatchReaper(ctx context.Context, mgr *MatchManager, cfg *config.Config) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	interval := time.Duration(cfg.ReaperIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := sweepStaleMatches(ctx, mgr, cfg); err != nil {
				log.Printf("[REAPER] run failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Printf("[REAPER] started (every %v, stale after %dh)", interval, cfg.Tunables().StaleMatchHours)

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[REAPER] shutdown error: %v", err)
		}
		log.Println("[REAPER] stopped")
	}()
	return sched, nil
}

// sweepStaleMatches runs one reaper pass with the stale age currently in cfg
func sweepStaleMatches(ctx context.Context, mgr *MatchManager, cfg *config.Config) (int, error) {
	hours := cfg.Tunables().StaleMatchHours
	if hours <= 0 {
		log.Debug("[REAPER] paused (stale_match_hours <= 0)")
		return 0, nil
	}
	maxAge := time.Duration(hours) * time.Hour
	n, err := mgr.EndStaleMatches(ctx, maxAge, reaperBatch)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[REAPER] ended %d stale matches (older than %v)", n, maxAge)
	}
	return n, nil
}
