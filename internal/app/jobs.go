package app

import (
	"context"
	"strings"
	"time"

	"tempo/internal/config"
	"tempo/internal/housekeeping"
	logx "tempo/pkg/logx"
	"tempo/pkg/tempo"
)

type jobDef struct {
	name, spec string
	run        housekeeping.Job
}

// registerJobs adds the housekeeping jobs. An empty schedule disables a job.
func (a *App) registerJobs(cfg *config.Config) error {
	hk := cfg.EffectiveHousekeeping()
	retention, err := config.ParseDurationOrDefault("housekeeping.journal_retention", hk.JournalRetention, config.DefaultJournalRetention)
	if err != nil {
		return err
	}

	jobs := []jobDef{
		{name: "cleanup", spec: hk.Cleanup, run: a.cleanupJob},
		{name: "status", spec: hk.Status, run: a.statusJob},
	}
	if a.store != nil {
		jobs = append(jobs, jobDef{name: "journal.prune", spec: hk.JournalPrune, run: func(ctx context.Context) error {
			return a.pruneJob(ctx, retention)
		}})
	}

	for _, j := range jobs {
		if strings.TrimSpace(j.spec) == "" {
			continue
		}
		if err := a.jobs.Add(j.name, j.spec, j.run); err != nil {
			return err
		}
	}
	return nil
}

// cleanupJob sweeps removed handles out of the registry.
func (a *App) cleanupJob(ctx context.Context) error {
	var n int
	if err := a.loop.Do(ctx, func() { n = a.sched.Cleanup() }); err != nil {
		return err
	}
	if n > 0 {
		a.log.Debug("registry swept", logx.Int("removed", n))
	}
	return nil
}

func (a *App) pruneJob(ctx context.Context, retention time.Duration) error {
	n, err := a.store.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info("journal pruned", logx.Int("removed", n), logx.Duration("retention", retention))
	}
	return nil
}

// statusJob logs one line with live counts.
func (a *App) statusJob(ctx context.Context) error {
	var sn tempo.Snapshot
	var pending int
	err := a.loop.Do(ctx, func() {
		sn = a.sched.Snapshot()
		pending = a.loop.Pending()
	})
	if err != nil {
		return err
	}
	counts := sn.Counts()
	sup := a.sup.Snapshot()
	a.log.Info("status",
		logx.String("speed", sn.Speed.String()),
		logx.Duration("clock", sn.Now),
		logx.Int("scheduled", counts[tempo.StateScheduled]),
		logx.Int("paused", counts[tempo.StatePaused]),
		logx.Int("removed", counts[tempo.StateRemoved]),
		logx.Int("bookings", pending),
		logx.Uint64("frames", a.runner.Frames()),
		logx.Int64("goroutines", sup.Active),
		logx.Uint64("bus_dropped", a.bus.Dropped()),
	)
	return nil
}
