package tempo

import (
	"time"

	"github.com/google/uuid"

	logx "tempo/pkg/logx"
)

// Timer fires a callback every interval, count times (0 = until cancelled),
// and survives any number of pause/resume cycles without losing or
// duplicating a fire.
//
// Timer methods must be called from the goroutine that drives the
// Scheduler's Delayer.
type Timer struct {
	s *Scheduler

	id       string
	name     string
	userData any

	duration time.Duration
	count    int
	counter  int
	infinite bool

	// remaining is the nominal time left in the current interval as of the
	// last pause; intervalStart is the clock reading when it (re)started.
	remaining       time.Duration
	intervalStart   time.Duration
	speedAtSchedule Speed

	state   State
	booking BookingID

	callback TimerCallback
	onEnd    TimerCallback
}

type TimerOption func(*Timer)

func TimerName(name string) TimerOption {
	return func(t *Timer) { t.name = name }
}

func TimerData(v any) TimerOption {
	return func(t *Timer) { t.userData = v }
}

// TimerOnEnd is dispatched once, after the final fire of a finite timer.
func TimerOnEnd(cb TimerCallback) TimerOption {
	return func(t *Timer) { t.onEnd = cb }
}

// NewTimer schedules cb every d, count times. count 0 repeats until Cancel.
func (s *Scheduler) NewTimer(d time.Duration, cb TimerCallback, count int, opts ...TimerOption) *Timer {
	if count < 0 {
		count = 0
	}
	t := &Timer{
		s:             s,
		id:            uuid.NewString(),
		duration:      d,
		count:         count,
		infinite:      count == 0,
		remaining:     d,
		intervalStart: s.clock.Now(),
		state:         StateScheduled,
		callback:      cb,
	}
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}
	t.book(d, count)
	s.timers = append(s.timers, t)

	s.log.Debug("timer created",
		logx.Handle(string(HandleTimer), t.id, t.name),
		logx.Duration("every", d),
		logx.Int("count", count),
		logx.Float64("speed", float64(s.speed)),
	)
	s.emit(t.event(EventCreated))
	return t
}

// After fires cb once after d.
func (s *Scheduler) After(d time.Duration, cb TimerCallback, opts ...TimerOption) *Timer {
	return s.NewTimer(d, cb, 1, opts...)
}

// Every fires cb every d until cancelled.
func (s *Scheduler) Every(d time.Duration, cb TimerCallback, opts ...TimerOption) *Timer {
	return s.NewTimer(d, cb, 0, opts...)
}

func (t *Timer) book(d time.Duration, repeat int) {
	t.speedAtSchedule = t.s.speed
	t.booking = t.s.delayer.Schedule(t.speedAtSchedule.Scale(d), t.fire, repeat)
}

// fire runs on every tick of the live booking.
func (t *Timer) fire() {
	if t.callback.IsZero() {
		// Stale booking after Cancel, or a timer created without a callback.
		t.Cancel()
		return
	}
	s := t.s
	t.callback.dispatch(t)
	if t.state == StateRemoved {
		// Cancelled from inside its own callback.
		return
	}

	if !t.infinite {
		t.counter++
	}
	s.emit(t.event(EventFired))
	if !t.infinite && t.counter >= t.count {
		t.Cancel()
		t.onEnd.dispatch(t)
		s.log.Debug("timer ended", logx.Handle(string(HandleTimer), t.id, t.name), logx.Int("fired", t.counter))
		s.emit(t.event(EventEnded))
	}

	t.remaining = t.duration
	t.intervalStart = s.clock.Now()
}

// fireRemainder runs when the single-shot booking made by Resume fires. It
// re-enters the regular cadence with a fresh full-interval booking.
func (t *Timer) fireRemainder() {
	t.booking = 0
	t.fire()
	if t.state != StateScheduled {
		// Cancelled, ended or paused from inside the callback.
		return
	}
	left := 0
	if !t.infinite {
		left = t.count - t.counter
		if left <= 0 {
			t.Cancel()
			return
		}
	}
	t.book(t.duration, left)
}

// Pause freezes the timer. Calling it on a paused or removed timer does nothing.
func (t *Timer) Pause() {
	if t.state != StateScheduled {
		return
	}
	s := t.s
	s.delayer.Cancel(t.booking)
	t.booking = 0

	t.remaining -= t.speedAtSchedule.Unscale(s.clock.Now() - t.intervalStart)
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.state = StatePaused
	s.emit(t.event(EventPaused))
}

// Resume continues a paused timer with whatever was left of its interval,
// scaled by the current speed. It does nothing unless the timer is paused.
func (t *Timer) Resume() {
	if t.state != StatePaused {
		return
	}
	if !t.infinite && t.counter >= t.count {
		t.Cancel()
		return
	}
	s := t.s
	t.state = StateScheduled
	t.intervalStart = s.clock.Now()
	t.speedAtSchedule = s.speed
	t.booking = s.delayer.Schedule(t.speedAtSchedule.Scale(t.remaining), t.fireRemainder, 1)
	s.emit(t.event(EventResumed))
}

// Cancel stops the timer for good and marks it for removal. It is safe to
// call more than once and from inside the timer's own callbacks.
func (t *Timer) Cancel() {
	if t.state == StateRemoved {
		return
	}
	if t.booking != 0 {
		t.s.delayer.Cancel(t.booking)
		t.booking = 0
	}
	t.state = StateRemoved
	t.callback = TimerCallback{}
	t.s.emit(t.event(EventCancelled))
}

func (t *Timer) ID() string              { return t.id }
func (t *Timer) Name() string            { return t.name }
func (t *Timer) UserData() any           { return t.userData }
func (t *Timer) Duration() time.Duration { return t.duration }
func (t *Timer) Count() int              { return t.count }
func (t *Timer) Counter() int            { return t.counter }
func (t *Timer) Infinite() bool          { return t.infinite }
func (t *Timer) State() State            { return t.state }
func (t *Timer) Paused() bool            { return t.state == StatePaused }
func (t *Timer) Removed() bool           { return t.state == StateRemoved }

// Remaining reports the nominal time left in the current interval.
func (t *Timer) Remaining() time.Duration {
	if t.state != StateScheduled {
		return t.remaining
	}
	r := t.remaining - t.speedAtSchedule.Unscale(t.s.clock.Now()-t.intervalStart)
	if r < 0 {
		return 0
	}
	return r
}

func (t *Timer) event(kind EventKind) Event {
	return Event{
		Kind:    kind,
		Handle:  HandleTimer,
		ID:      t.id,
		Name:    t.name,
		Counter: t.counter,
		At:      t.s.clock.Now(),
	}
}
