package app

import (
	"maps"
	"slices"

	"tempo/internal/config"
	logx "tempo/pkg/logx"
	"tempo/pkg/tempo"
)

// seed creates the configured timers and transitions. It runs on the loop
// goroutine. Config has been validated, so parse errors cannot happen here.
func (a *App) seed(cfg *config.Config) {
	log := a.log.With(logx.String("comp", "seed"))

	for _, tc := range cfg.Timers {
		every, _ := config.ParseDurationField("every", tc.Every)
		name := tc.Name
		ticks := 0
		a.sched.NewTimer(every,
			tempo.TimerFunc(func(t *tempo.Timer) {
				ticks++
				log.Debug("timer tick", logx.Handle("timer", t.ID(), name), logx.Int("tick", ticks))
			}),
			tc.Count,
			tempo.TimerName(name),
			tempo.TimerOnEnd(tempo.TimerFunc(func(t *tempo.Timer) {
				log.Info("timer finished", logx.Handle("timer", t.ID(), name), logx.Int("fires", t.Counter()))
			})),
		)
	}

	for _, tc := range cfg.Transitions {
		d, _ := config.ParseDurationField("time", tc.Time)
		name := tc.Name
		cycles := 0
		obj := tempo.Props(maps.Clone(tc.From))
		if obj == nil {
			obj = tempo.Props{}
		}
		opts := []tempo.TransitionOption{
			tempo.TransitionName(name),
			tempo.Cycles(tc.Cycles()),
			tempo.OnComplete(tempo.TransitionFunc(func(t *tempo.Transition) {
				cycles++
				log.Debug("transition cycle", logx.Handle("transition", t.ID(), name), logx.Int("cycle", cycles), logx.Any("values", propsField(obj)))
			})),
			tempo.OnEnd(tempo.TransitionFunc(func(t *tempo.Transition) {
				log.Info("transition finished", logx.Handle("transition", t.ID(), name), logx.Any("values", propsField(obj)))
			})),
		}
		if tc.BackAndForth {
			opts = append(opts, tempo.BackAndForth())
		}
		a.sched.NewTransition(obj, tempo.Props(tc.To), d, opts...)
	}

	if n := len(cfg.Timers) + len(cfg.Transitions); n > 0 {
		log.Info("handles created", logx.Int("count", n), logx.Duration("clock", a.sched.Now()))
	}
}

// propsField renders props in key order for stable log lines.
func propsField(p tempo.Props) []any {
	keys := slices.Sorted(maps.Keys(p))
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, p[k])
	}
	return out
}
