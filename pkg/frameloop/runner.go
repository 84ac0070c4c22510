package frameloop

import (
	"context"
	"sync/atomic"
	"time"

	logx "tempo/pkg/logx"
)

// DefaultFrameRate is roughly 60 frames per second.
const DefaultFrameRate = time.Second / 60

// Runner drives a Loop from the wall clock.
type Runner struct {
	Loop      *Loop
	FrameRate time.Duration
	Log       logx.Logger

	frames atomic.Uint64
	rate   atomic.Int64 // pending frame rate change, 0 = none
}

// SetFrameRate changes the tick interval of a running Runner. It is safe to
// call from any goroutine.
func (r *Runner) SetFrameRate(d time.Duration) {
	if d > 0 {
		r.rate.Store(int64(d))
	}
}

// Run advances the loop by the real elapsed time on every frame until ctx is
// done. The loop is closed on return.
func (r *Runner) Run(ctx context.Context) error {
	rate := r.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}

	tk := time.NewTicker(rate)
	defer tk.Stop()
	defer r.Loop.Close()

	r.Log.Debug("frame loop started", logx.Duration("frame_rate", rate))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.Log.Debug("frame loop stopped", logx.Uint64("frames", r.frames.Load()))
			return nil
		case now := <-tk.C:
			r.Loop.Advance(now.Sub(last))
			last = now
			r.frames.Add(1)

			if next := time.Duration(r.rate.Swap(0)); next > 0 && next != rate {
				rate = next
				tk.Reset(rate)
				r.Log.Info("frame rate changed", logx.Duration("frame_rate", rate))
			}
		}
	}
}

func (r *Runner) Frames() uint64 { return r.frames.Load() }
