package tempo

import (
	"slices"
	"time"

	logx "tempo/pkg/logx"
)

// Scheduler owns every live timer and transition together with the playback
// speed they are scheduled at. Independent schedulers share nothing.
//
// A Scheduler is not safe for concurrent use: call it only from the goroutine
// that runs its Delayer and Interpolator callbacks.
type Scheduler struct {
	clock   Clock
	delayer Delayer
	interp  Interpolator

	speed    Speed
	log      logx.Logger
	observer func(Event)

	timers      []*Timer
	transitions []*Transition
}

type Option func(*Scheduler)

// WithSpeed sets the initial speed. Invalid values are ignored.
func WithSpeed(sp Speed) Option {
	return func(s *Scheduler) {
		if sp.Valid() {
			s.speed = sp
		}
	}
}

func WithLogger(l logx.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithObserver registers fn to receive every lifecycle event, synchronously.
// fn must not block.
func WithObserver(fn func(Event)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

func New(clock Clock, delayer Delayer, interp Interpolator, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   clock,
		delayer: delayer,
		interp:  interp,
		speed:   SpeedNormal,
		log:     logx.Nop(),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	s.log = s.log.With(logx.String("comp", "tempo"))
	return s
}

func (s *Scheduler) emit(e Event) {
	if s.observer != nil {
		s.observer(e)
	}
}

func (s *Scheduler) Now() time.Duration { return s.clock.Now() }
func (s *Scheduler) Speed() Speed       { return s.speed }

// SetSpeed replaces the speed without touching live handles. Bookings already
// made keep their scaled durations; use ChangeSpeed to rescale them.
func (s *Scheduler) SetSpeed(sp Speed) error {
	if !sp.Valid() {
		return ErrInvalidSpeed
	}
	s.speed = sp
	return nil
}

// ChangeSpeed pauses every running handle, sets the speed and resumes the
// same handles, so their remaining time is rescaled. Handles that were already
// paused stay paused.
func (s *Scheduler) ChangeSpeed(sp Speed) error {
	if !sp.Valid() {
		return ErrInvalidSpeed
	}
	if sp == s.speed {
		return nil
	}

	var timers []*Timer
	for i := len(s.timers) - 1; i >= 0; i-- {
		if t := s.timers[i]; t.state == StateScheduled {
			t.Pause()
			timers = append(timers, t)
		}
	}
	var transitions []*Transition
	for i := len(s.transitions) - 1; i >= 0; i-- {
		if t := s.transitions[i]; t.state == StateScheduled {
			t.Pause()
			if t.state == StatePaused {
				transitions = append(transitions, t)
			}
		}
	}

	prev := s.speed
	s.speed = sp

	for _, t := range timers {
		t.Resume()
	}
	for _, t := range transitions {
		t.Resume()
	}
	s.log.Info("speed changed",
		logx.String("from", prev.String()),
		logx.String("to", sp.String()),
		logx.Int("timers", len(timers)),
		logx.Int("transitions", len(transitions)),
	)
	return nil
}

// PauseAllTimers pauses live timers newest first, dropping removed ones.
func (s *Scheduler) PauseAllTimers() {
	for i := len(s.timers) - 1; i >= 0; i-- {
		t := s.timers[i]
		if t.state == StateRemoved {
			s.timers = slices.Delete(s.timers, i, i+1)
			continue
		}
		t.Pause()
	}
}

func (s *Scheduler) ResumeAllTimers() {
	for i := len(s.timers) - 1; i >= 0; i-- {
		t := s.timers[i]
		if t.state == StateRemoved {
			s.timers = slices.Delete(s.timers, i, i+1)
			continue
		}
		t.Resume()
	}
}

func (s *Scheduler) CancelAllTimers() {
	for i := len(s.timers) - 1; i >= 0; i-- {
		s.timers[i].Cancel()
	}
	clear(s.timers)
	s.timers = s.timers[:0]
}

func (s *Scheduler) PauseAllTransitions() {
	for i := len(s.transitions) - 1; i >= 0; i-- {
		t := s.transitions[i]
		if t.state == StateRemoved {
			s.transitions = slices.Delete(s.transitions, i, i+1)
			continue
		}
		t.Pause()
	}
}

func (s *Scheduler) ResumeAllTransitions() {
	for i := len(s.transitions) - 1; i >= 0; i-- {
		t := s.transitions[i]
		if t.state == StateRemoved {
			s.transitions = slices.Delete(s.transitions, i, i+1)
			continue
		}
		t.Resume()
	}
}

func (s *Scheduler) CancelAllTransitions() {
	for i := len(s.transitions) - 1; i >= 0; i-- {
		s.transitions[i].Cancel()
	}
	clear(s.transitions)
	s.transitions = s.transitions[:0]
}

func (s *Scheduler) PauseAll() {
	s.PauseAllTimers()
	s.PauseAllTransitions()
}

func (s *Scheduler) ResumeAll() {
	s.ResumeAllTimers()
	s.ResumeAllTransitions()
}

func (s *Scheduler) CancelAll() {
	s.CancelAllTimers()
	s.CancelAllTransitions()
}

// Cleanup drops every removed handle from both collections and reports how
// many were dropped. Live handles are not touched.
func (s *Scheduler) Cleanup() int {
	n := 0
	s.timers = slices.DeleteFunc(s.timers, func(t *Timer) bool {
		if t.state != StateRemoved {
			return false
		}
		n++
		s.emit(t.event(EventSwept))
		return true
	})
	s.transitions = slices.DeleteFunc(s.transitions, func(t *Transition) bool {
		if t.state != StateRemoved {
			return false
		}
		n++
		s.emit(t.event(EventSwept))
		return true
	})
	if n > 0 {
		s.log.Trace("cleanup", logx.Int("removed", n))
	}
	return n
}

// Timers returns the registered timers in creation order, including removed
// ones that have not been swept yet.
func (s *Scheduler) Timers() []*Timer { return slices.Clone(s.timers) }

func (s *Scheduler) Transitions() []*Transition { return slices.Clone(s.transitions) }

type TimerInfo struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	State     State         `json:"state"`
	Every     time.Duration `json:"every"`
	Count     int           `json:"count"`
	Counter   int           `json:"counter"`
	Remaining time.Duration `json:"remaining"`
}

type TransitionInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	State        State         `json:"state"`
	Time         time.Duration `json:"time"`
	Cycle        int           `json:"cycle"`
	CycleCount   int           `json:"cycle_count"`
	BackAndForth bool          `json:"back_and_forth,omitempty"`
}

// Snapshot is a point-in-time view of a Scheduler.
type Snapshot struct {
	Speed       Speed            `json:"speed"`
	Now         time.Duration    `json:"now"`
	Timers      []TimerInfo      `json:"timers"`
	Transitions []TransitionInfo `json:"transitions"`
}

// Counts returns the number of handles per state across both collections.
func (sn Snapshot) Counts() map[State]int {
	out := make(map[State]int, 3)
	for _, t := range sn.Timers {
		out[t.State]++
	}
	for _, t := range sn.Transitions {
		out[t.State]++
	}
	return out
}

func (s *Scheduler) Snapshot() Snapshot {
	sn := Snapshot{
		Speed:       s.speed,
		Now:         s.clock.Now(),
		Timers:      make([]TimerInfo, 0, len(s.timers)),
		Transitions: make([]TransitionInfo, 0, len(s.transitions)),
	}
	for _, t := range s.timers {
		sn.Timers = append(sn.Timers, TimerInfo{
			ID:        t.id,
			Name:      t.name,
			State:     t.state,
			Every:     t.duration,
			Count:     t.count,
			Counter:   t.counter,
			Remaining: t.Remaining(),
		})
	}
	for _, t := range s.transitions {
		sn.Transitions = append(sn.Transitions, TransitionInfo{
			ID:           t.id,
			Name:         t.opts.name,
			State:        t.state,
			Time:         t.baseTime,
			Cycle:        t.opts.cycle,
			CycleCount:   t.cycleCount,
			BackAndForth: t.opts.backAndForth,
		})
	}
	return sn
}
