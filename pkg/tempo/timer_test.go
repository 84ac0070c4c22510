package tempo_test

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"tempo/pkg/frameloop"
	"tempo/pkg/tempo"
)

type harness struct {
	loop   *frameloop.Loop
	s      *tempo.Scheduler
	events []tempo.Event
}

func newHarness(t *testing.T, opts ...tempo.Option) *harness {
	t.Helper()
	h := &harness{loop: frameloop.New()}
	opts = append([]tempo.Option{tempo.WithObserver(func(e tempo.Event) {
		h.events = append(h.events, e)
	})}, opts...)
	h.s = tempo.New(h.loop, h.loop, h.loop, opts...)
	t.Cleanup(h.loop.Close)
	return h
}

func (h *harness) advance(d time.Duration) { h.loop.Advance(d) }

func (h *harness) eventsOf(kind tempo.EventKind) []tempo.Event {
	var out []tempo.Event
	for _, e := range h.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

type timerLog struct {
	loop  *frameloop.Loop
	fires []time.Duration
	ends  []time.Duration
}

func (l *timerLog) callback() tempo.TimerCallback {
	return tempo.TimerFunc(func(*tempo.Timer) { l.fires = append(l.fires, l.loop.Now()) })
}

func (l *timerLog) onEnd() tempo.TimerOption {
	return tempo.TimerOnEnd(tempo.TimerFunc(func(*tempo.Timer) { l.ends = append(l.ends, l.loop.Now()) }))
}

func equalDurations(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTimerFiresCountTimesThenEnds(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	tm := h.s.NewTimer(ms(1000), rec.callback(), 3, rec.onEnd())

	h.loop.RunFor(ms(10000), ms(16))

	if want := []time.Duration{ms(1000), ms(2000), ms(3000)}; !equalDurations(rec.fires, want) {
		t.Fatalf("fires = %v, want %v", rec.fires, want)
	}
	if want := []time.Duration{ms(3000)}; !equalDurations(rec.ends, want) {
		t.Fatalf("ends = %v, want %v", rec.ends, want)
	}
	if !tm.Removed() || tm.Counter() != 3 {
		t.Fatalf("state = %v counter = %d, want removed after 3", tm.State(), tm.Counter())
	}
	if n := h.loop.Pending(); n != 0 {
		t.Fatalf("pending bookings = %d, want 0", n)
	}
}

func TestTimerResumeUsesRemainderOfInterval(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	tm := h.s.NewTimer(ms(1000), rec.callback(), 3, rec.onEnd())

	h.advance(ms(1500))
	tm.Pause()
	if got := tm.Remaining(); got != ms(500) {
		t.Fatalf("Remaining after pause = %v, want 500ms", got)
	}
	h.advance(ms(5000))
	if len(rec.fires) != 1 {
		t.Fatalf("fires while paused = %v, want only the first", rec.fires)
	}

	tm.Resume()
	h.advance(ms(499))
	if len(rec.fires) != 1 {
		t.Fatalf("fired %v before the remaining 500ms elapsed", rec.fires)
	}
	h.advance(ms(1))
	h.advance(ms(5000))

	want := []time.Duration{ms(1000), ms(7000), ms(8000)}
	if !equalDurations(rec.fires, want) {
		t.Fatalf("fires = %v, want %v", rec.fires, want)
	}
	if len(rec.ends) != 1 || rec.ends[0] != ms(8000) {
		t.Fatalf("ends = %v, want [8s]", rec.ends)
	}
}

func TestTimerPausedNeverFires(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	tm := h.s.NewTimer(ms(100), rec.callback(), 0)

	h.advance(ms(250))
	tm.Pause()
	tm.Pause()
	h.advance(time.Hour)

	if len(rec.fires) != 2 {
		t.Fatalf("fires = %d, want 2", len(rec.fires))
	}
	if !tm.Paused() || h.loop.Pending() != 0 {
		t.Fatalf("paused=%v pending=%d, want paused with nothing booked", tm.Paused(), h.loop.Pending())
	}
}

func TestTimerFireCountSurvivesPauseResume(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	for round := range 100 {
		h := newHarness(t)
		rec := &timerLog{loop: h.loop}
		n := 1 + rng.IntN(6)
		every := ms(50 + rng.IntN(950))
		tm := h.s.NewTimer(every, rec.callback(), n, rec.onEnd())

		for step := 0; step < 300 && !tm.Removed(); step++ {
			h.advance(ms(rng.IntN(600)))
			if rng.IntN(2) == 0 {
				tm.Pause()
			} else {
				tm.Resume()
			}
		}
		tm.Resume()
		h.advance(24 * time.Hour)

		if len(rec.fires) != n || len(rec.ends) != 1 {
			t.Fatalf("round %d: every=%v count=%d fired %d times, ended %d times", round, every, n, len(rec.fires), len(rec.ends))
		}
		if tm.Counter() != n {
			t.Fatalf("round %d: Counter = %d, want %d", round, tm.Counter(), n)
		}
	}
}

func TestTimerInfiniteNeverEnds(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	tm := h.s.Every(ms(100), rec.callback(), rec.onEnd())

	h.advance(ms(1000))
	tm.Pause()
	h.advance(ms(30))
	tm.Resume()
	h.advance(ms(1000))

	if len(rec.fires) != 20 {
		t.Fatalf("fires = %d, want 20", len(rec.fires))
	}
	if len(rec.ends) != 0 || tm.Removed() || tm.Counter() != 0 {
		t.Fatalf("infinite timer ended=%d removed=%v counter=%d", len(rec.ends), tm.Removed(), tm.Counter())
	}

	tm.Cancel()
	h.advance(ms(1000))
	if len(rec.fires) != 20 || len(rec.ends) != 0 {
		t.Fatalf("fired after cancel: fires=%d ends=%d", len(rec.fires), len(rec.ends))
	}
}

func TestTimerCancelledIgnoresPauseResume(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	tm := h.s.NewTimer(ms(100), rec.callback(), 5)

	h.advance(ms(150))
	tm.Cancel()
	tm.Cancel()
	tm.Pause()
	tm.Resume()
	h.advance(time.Second)

	if tm.State() != tempo.StateRemoved {
		t.Fatalf("State = %v, want removed", tm.State())
	}
	if len(rec.fires) != 1 || h.loop.Pending() != 0 {
		t.Fatalf("fires=%d pending=%d, want 1 and 0", len(rec.fires), h.loop.Pending())
	}
	if n := len(h.eventsOf(tempo.EventCancelled)); n != 1 {
		t.Fatalf("cancelled events = %d, want 1", n)
	}
}

type countingListener struct{ n int }

func (c *countingListener) TimerEnd(*tempo.Timer) { c.n++ }

func TestTimerListenerCallbacks(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	l := &countingListener{}
	h.s.NewTimer(ms(10), tempo.TimerMethod(l), 2, tempo.TimerOnEnd(tempo.TimerMethod(l)))

	h.advance(ms(100))

	// Two ticks plus the final end notification.
	if l.n != 3 {
		t.Fatalf("listener called %d times, want 3", l.n)
	}
}

func TestTimerWithoutCallbackCancelsOnFirstFire(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	tm := h.s.NewTimer(ms(100), tempo.TimerFunc(nil), 3, rec.onEnd())

	h.advance(ms(99))
	if tm.Removed() {
		t.Fatal("removed before first fire")
	}
	h.advance(ms(1000))
	if !tm.Removed() || len(rec.ends) != 0 {
		t.Fatalf("removed=%v ends=%d, want removed without onEnd", tm.Removed(), len(rec.ends))
	}
}

func TestTimerCancelInsideCallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	fires := 0
	tm := h.s.NewTimer(ms(100), tempo.TimerFunc(func(tm *tempo.Timer) {
		fires++
		if fires == 2 {
			tm.Cancel()
		}
	}), 5, rec.onEnd())

	h.advance(time.Second)

	if fires != 2 || len(rec.ends) != 0 {
		t.Fatalf("fires=%d ends=%d, want 2 and 0", fires, len(rec.ends))
	}
	if !tm.Removed() || h.loop.Pending() != 0 {
		t.Fatalf("removed=%v pending=%d", tm.Removed(), h.loop.Pending())
	}
}

func TestTimerCancelInsideCallbackAfterResume(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	fires := 0
	tm := h.s.NewTimer(ms(100), tempo.TimerFunc(func(tm *tempo.Timer) {
		fires++
		tm.Cancel()
	}), 0)

	h.advance(ms(50))
	tm.Pause()
	tm.Resume()
	h.advance(time.Second)

	if fires != 1 || h.loop.Pending() != 0 {
		t.Fatalf("fires=%d pending=%d, want 1 and 0", fires, h.loop.Pending())
	}
}

func TestTimerScaledBySpeed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		speed tempo.Speed
		want  []time.Duration
	}{
		{name: "normal", speed: tempo.SpeedNormal, want: []time.Duration{ms(1000), ms(2000)}},
		{name: "fast", speed: tempo.SpeedFast, want: []time.Duration{ms(500), ms(1000)}},
		{name: "slow", speed: tempo.SpeedSlow, want: []time.Duration{ms(2000), ms(4000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tempo.WithSpeed(tt.speed))
			rec := &timerLog{loop: h.loop}
			h.s.NewTimer(ms(1000), rec.callback(), 2)
			h.advance(ms(10000))
			if !equalDurations(rec.fires, tt.want) {
				t.Fatalf("fires = %v, want %v", rec.fires, tt.want)
			}
		})
	}
}

func TestTimerPauseUnscalesElapsedTime(t *testing.T) {
	t.Parallel()
	h := newHarness(t, tempo.WithSpeed(tempo.SpeedSlow))
	rec := &timerLog{loop: h.loop}
	tm := h.s.NewTimer(ms(1000), rec.callback(), 1)

	// 1s of wall time at slow speed is 500ms of nominal time.
	h.advance(ms(1000))
	tm.Pause()
	if got := tm.Remaining(); got != ms(500) {
		t.Fatalf("Remaining = %v, want 500ms", got)
	}

	if err := h.s.SetSpeed(tempo.SpeedNormal); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	tm.Resume()
	h.advance(ms(500))
	if want := []time.Duration{ms(1500)}; !equalDurations(rec.fires, want) {
		t.Fatalf("fires = %v, want %v", rec.fires, want)
	}
}

func TestTimerResumeAfterFinalFireIsNoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := &timerLog{loop: h.loop}
	tm := h.s.After(ms(100), rec.callback(), tempo.TimerName("once"), tempo.TimerData(42))

	h.advance(ms(100))
	tm.Resume()
	h.advance(time.Second)

	if len(rec.fires) != 1 || !tm.Removed() {
		t.Fatalf("fires=%d removed=%v", len(rec.fires), tm.Removed())
	}
	if tm.Name() != "once" || tm.UserData() != 42 {
		t.Fatalf("Name=%q UserData=%v", tm.Name(), tm.UserData())
	}
	if tm.ID() == "" {
		t.Fatal("empty ID")
	}
}
