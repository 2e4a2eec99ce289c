/*
scheduler.go - Background maintenance scheduler

PURPOSE:
  Runs the periodic jobs the workflow needs to stay consistent without a
  request in flight:
    - Reconcile: re-derives employee used-day totals from the request
      table and restores start-date ordering
    - Roster refresh: drops the cached manager list so roster changes
      take effect without a restart

DESIGN:
  Jobs run on cron schedules (standard 5-field syntax). A reconcile tick
  competes for the same engine lock as interactive mutations; when the
  engine is busy the tick is skipped and the next one catches up.

USAGE:
  sched := NewScheduler(engine, roster, "0 * * * *", log)
  sched.Start()
  defer sched.Stop()

SEE ALSO:
  - vacation/engine.go: Reconcile
  - vacation/roster.go: CachedRoster
*/
package api

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/vacation-engine/vacation"
)

// Scheduler owns the cron runner for background maintenance.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler registers the maintenance jobs. schedule is a standard
// cron expression for the reconcile job; the roster cache is refreshed on
// the same tick.
func NewScheduler(engine *vacation.Engine, roster *vacation.CachedRoster, schedule string, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if roster != nil {
			roster.Refresh()
		}

		err := engine.Reconcile(ctx)
		if errors.Is(err, vacation.ErrBusy) {
			log.Debug("reconcile skipped, engine busy")
			return
		}
		if err != nil {
			log.Warn("reconcile failed", zap.Error(err))
			return
		}
		log.Debug("reconcile completed")
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, log: log}, nil
}

// Start begins running the registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}
