package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tempo/internal/admin"
	"tempo/internal/config"
	"tempo/internal/eventbus"
	"tempo/internal/housekeeping"
	"tempo/internal/runtime/supervisor"
	"tempo/internal/storage"
	"tempo/pkg/frameloop"
	logx "tempo/pkg/logx"
	"tempo/pkg/tempo"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	loop   *frameloop.Loop
	runner *frameloop.Runner
	sched  *tempo.Scheduler
	jobs   *housekeeping.Service
	admin  *admin.Server
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateAdmin(cfg); err != nil {
		return nil, err
	}
	pb, err := cfg.ParsePlayback()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Journal (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, root)
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("journal enabled", logx.String("driver", sc.Driver))
	}

	loop := frameloop.New(frameloop.WithLogger(root))
	sched := tempo.New(loop, loop, loop,
		tempo.WithSpeed(pb.Speed),
		tempo.WithLogger(root),
		tempo.WithObserver(func(e tempo.Event) { bus.Publish(eventbus.FromTempo(e)) }),
	)
	runner := &frameloop.Runner{
		Loop:      loop,
		FrameRate: pb.FrameRate,
		Log:       root.With(logx.String("comp", "frameloop")),
	}

	jobs := housekeeping.New(housekeeping.Config{Timezone: cfg.Housekeeping.Timezone}, root)
	adm := admin.NewServer(admin.Deps{Loop: loop, Scheduler: sched, Journal: store, Jobs: jobs}, root)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		loop:    loop,
		runner:  runner,
		sched:   sched,
		jobs:    jobs,
		admin:   adm,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	// Transactional reload: reject before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		if err := validateAdmin(c); err != nil {
			return err
		}
		_, _, err := mapStorageConfig(c)
		return err
	})

	// Handles are created on the loop goroutine before the first frame.
	a.loop.Post(func() { a.seed(cfg) })
	a.sup.Go("frameloop.run", a.runner.Run)

	if a.store != nil {
		topics := journalTopics(cfg)
		a.sup.GoRestart("journal.write", func(c context.Context) error {
			return a.writeJournal(c, topics)
		})
	}

	if err := a.registerJobs(cfg); err != nil {
		return err
	}
	a.jobs.Start(a.sup.Context())
	a.admin.Apply(a.sup.Context(), mapAdminConfig(cfg))

	sub, unsub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer unsub()
		lastApplied := cfg
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Int("timers", len(cfg.Timers)),
		logx.Int("transitions", len(cfg.Transitions)),
		logx.String("speed", a.sched.Speed().String()),
	)
	return nil
}

// applyConfig applies the live sections and warns about the rest.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	a.logs.Apply(mapLogConfig(newCfg))

	if pb, err := newCfg.ParsePlayback(); err != nil {
		a.log.Warn("invalid playback config; keeping previous", logx.Err(err))
	} else {
		var cerr error
		err := a.onLoop(ctx, func() { cerr = a.sched.ChangeSpeed(pb.Speed) })
		if err = errors.Join(err, cerr); err != nil {
			a.log.Warn("speed change failed", logx.Err(err))
		}
		a.runner.SetFrameRate(pb.FrameRate)
	}

	a.admin.Apply(ctx, mapAdminConfig(newCfg))

	if rest := config.RestartRequired(sections); len(rest) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(rest, ",")))
	}
	a.log.Info("config reloaded", fields[:1]...)
}

func (a *App) onLoop(ctx context.Context, fn func()) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.loop.Do(ctx, fn)
}

// Reload re-reads the config file now instead of waiting for the watcher
// and starts a fresh log file, the way logrotate expects on SIGHUP.
func (a *App) Reload(ctx context.Context) error {
	err := a.cfgm.Reload(ctx)
	if errors.Is(err, config.ErrUnchanged) {
		err = nil
	}
	return errors.Join(err, a.logs.Rotate())
}

// PauseAll pauses every timer and transition.
func (a *App) PauseAll(ctx context.Context) error {
	return a.onLoop(ctx, a.sched.PauseAll)
}

// ResumeAll resumes every paused timer and transition.
func (a *App) ResumeAll(ctx context.Context) error {
	return a.onLoop(ctx, a.sched.ResumeAll)
}

// Snapshot returns the scheduler state as seen from the loop goroutine.
func (a *App) Snapshot(ctx context.Context) (tempo.Snapshot, error) {
	var sn tempo.Snapshot
	err := a.onLoop(ctx, func() { sn = a.sched.Snapshot() })
	return sn, err
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > limit {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("admin", time.Second, func(c context.Context) error { a.admin.Stop(c); return nil })
	step("housekeeping", 2*time.Second, func(c context.Context) error { a.jobs.Stop(c); return nil })
	step("scheduler", time.Second, func(c context.Context) error {
		var sn tempo.Snapshot
		err := a.loop.Do(c, func() {
			sn = a.sched.Snapshot()
			a.sched.CancelAll()
		})
		if err != nil {
			return err
		}
		counts := sn.Counts()
		a.log.Info("handles cancelled",
			logx.Int("scheduled", counts[tempo.StateScheduled]),
			logx.Int("paused", counts[tempo.StatePaused]),
		)
		return nil
	})

	// Cancel the run context so the frame loop, watcher and journal writer unwind.
	a.sup.Cancel()
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("journal", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) Logger() logx.Logger { return a.log }
