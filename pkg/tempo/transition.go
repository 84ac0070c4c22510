package tempo

import (
	"slices"
	"time"

	"github.com/google/uuid"

	logx "tempo/pkg/logx"
)

// transitionOptions is captured once at creation and never changed.
type transitionOptions struct {
	name         string
	userData     any
	cycle        int
	backAndForth bool
	onComplete   TransitionCallback
	onEnd        TransitionCallback
}

type TransitionOption func(*transitionOptions)

func TransitionName(name string) TransitionOption {
	return func(o *transitionOptions) { o.name = name }
}

func TransitionData(v any) TransitionOption {
	return func(o *transitionOptions) { o.userData = v }
}

// Cycles sets how many times the interpolation runs. 0 repeats until
// cancelled; the default is 1.
func Cycles(n int) TransitionOption {
	return func(o *transitionOptions) { o.cycle = max(n, 0) }
}

// BackAndForth makes every cycle after the first animate back toward the
// values the previous cycle started from.
func BackAndForth() TransitionOption {
	return func(o *transitionOptions) { o.backAndForth = true }
}

// OnComplete is dispatched at the end of every cycle.
func OnComplete(cb TransitionCallback) TransitionOption {
	return func(o *transitionOptions) { o.onComplete = cb }
}

// OnEnd is dispatched once, after the last cycle of a finite transition.
func OnEnd(cb TransitionCallback) TransitionOption {
	return func(o *transitionOptions) { o.onEnd = cb }
}

// Transition animates properties of a Target over a fixed time per cycle and
// can be paused and resumed at any point.
type Transition struct {
	s    *Scheduler
	id   string
	opts transitionOptions
	obj  Target

	baseTime   time.Duration
	cycleCount int

	// to is the target of the current cycle; initial is its baseline.
	to      Props
	initial Props
	keys    []string

	elapsed         time.Duration // valid only while paused
	start           time.Duration
	speedAtSchedule Speed

	state   State
	booking BookingID
}

// NewTransition starts animating obj toward to over d.
func (s *Scheduler) NewTransition(obj Target, to Props, d time.Duration, opts ...TransitionOption) *Transition {
	o := transitionOptions{cycle: 1}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}

	t := &Transition{
		s:        s,
		id:       uuid.NewString(),
		opts:     o,
		obj:      obj,
		baseTime: d,
		start:    s.clock.Now(),
		to:       to.Clone(),
		initial:  make(Props, len(to)),
		state:    StateScheduled,
	}
	if t.to == nil {
		t.to = Props{}
	}
	for k := range t.to {
		t.keys = append(t.keys, k)
	}
	slices.Sort(t.keys)
	for _, k := range t.keys {
		v, _ := obj.Get(k)
		t.initial[k] = v
	}

	t.animate(d)
	s.transitions = append(s.transitions, t)

	s.log.Debug("transition created",
		logx.Handle(string(HandleTransition), t.id, o.name),
		logx.Duration("time", d),
		logx.Int("cycle", o.cycle),
		logx.Bool("back_and_forth", o.backAndForth),
		logx.Float64("speed", float64(s.speed)),
	)
	s.emit(t.event(EventCreated))
	return t
}

func (t *Transition) animate(nominal time.Duration) {
	t.speedAtSchedule = t.s.speed
	t.booking = t.s.interp.Animate(t.obj, t.to.Clone(), t.speedAtSchedule.Scale(nominal), t.complete)
}

// complete runs when a cycle's interpolation finishes on its own.
func (t *Transition) complete() {
	t.booking = 0
	if t.state != StateScheduled {
		return
	}
	s := t.s
	t.opts.onComplete.dispatch(t)
	if t.state == StateRemoved {
		return
	}

	if t.opts.cycle > 0 {
		t.cycleCount++
		s.emit(t.event(EventCycled))
		if t.cycleCount >= t.opts.cycle {
			t.Cancel()
			t.opts.onEnd.dispatch(t)
			s.log.Debug("transition ended", logx.Handle(string(HandleTransition), t.id, t.opts.name), logx.Int("cycles", t.cycleCount))
			s.emit(t.event(EventEnded))
			return
		}
	} else {
		s.emit(t.event(EventCycled))
	}
	t.repeat()
}

func (t *Transition) repeat() {
	t.elapsed = 0
	for _, k := range t.keys {
		if t.opts.backAndForth {
			cur, _ := t.obj.Get(k)
			t.to[k] = t.initial[k]
			t.initial[k] = cur
			continue
		}
		t.obj.Set(k, t.initial[k])
	}
	t.start = t.s.clock.Now()
	t.animate(t.baseTime)
}

// Pause freezes the transition at its current elapsed time. Pausing a
// transition whose interpolation already finished cancels it.
func (t *Transition) Pause() {
	if t.state != StateScheduled {
		return
	}
	if t.booking == 0 {
		t.Cancel()
		return
	}
	s := t.s
	t.elapsed = t.speedAtSchedule.Unscale(s.clock.Now() - t.start)
	s.interp.Cancel(t.booking)
	t.booking = 0
	t.state = StatePaused
	s.emit(t.event(EventPaused))
}

// Resume restarts the interpolation toward the same target over whatever
// was left of the cycle. The easing curve starts over for that remainder.
func (t *Transition) Resume() {
	if t.state != StatePaused {
		return
	}
	s := t.s
	rest := max(t.baseTime-t.elapsed, 0)
	t.state = StateScheduled
	t.start = s.clock.Now() - s.speed.Scale(t.elapsed)
	t.elapsed = 0
	t.animate(rest)
	s.emit(t.event(EventResumed))
}

// Cancel stops the transition where it is and marks it for removal. Safe to
// call repeatedly and from inside its callbacks.
func (t *Transition) Cancel() {
	if t.state == StateRemoved {
		return
	}
	if t.booking != 0 {
		t.s.interp.Cancel(t.booking)
		t.booking = 0
	}
	t.state = StateRemoved
	t.s.emit(t.event(EventCancelled))
}

func (t *Transition) ID() string          { return t.id }
func (t *Transition) Name() string        { return t.opts.name }
func (t *Transition) UserData() any       { return t.opts.userData }
func (t *Transition) Object() Target      { return t.obj }
func (t *Transition) Time() time.Duration { return t.baseTime }
func (t *Transition) Cycle() int          { return t.opts.cycle }
func (t *Transition) CycleCount() int     { return t.cycleCount }
func (t *Transition) BackAndForth() bool  { return t.opts.backAndForth }
func (t *Transition) State() State        { return t.state }
func (t *Transition) Paused() bool        { return t.state == StatePaused }
func (t *Transition) Removed() bool       { return t.state == StateRemoved }
func (t *Transition) Infinite() bool      { return t.opts.cycle == 0 }
func (t *Transition) Target() Props       { return t.to.Clone() }
func (t *Transition) Baseline() Props     { return t.initial.Clone() }

// Elapsed reports the nominal time consumed in the current cycle. ok is
// false unless the transition is paused.
func (t *Transition) Elapsed() (d time.Duration, ok bool) {
	if t.state != StatePaused {
		return 0, false
	}
	return t.elapsed, true
}

func (t *Transition) event(kind EventKind) Event {
	return Event{
		Kind:    kind,
		Handle:  HandleTransition,
		ID:      t.id,
		Name:    t.opts.name,
		Counter: t.cycleCount,
		At:      t.s.clock.Now(),
	}
}
