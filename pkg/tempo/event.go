package tempo

import "time"

// State is the lifecycle state shared by timers and transitions.
type State uint8

const (
	StateScheduled State = iota
	StatePaused
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StatePaused:
		return "paused"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type HandleKind string

const (
	HandleTimer      HandleKind = "timer"
	HandleTransition HandleKind = "transition"
)

type EventKind string

const (
	EventCreated   EventKind = "created"
	EventFired     EventKind = "fired"
	EventCycled    EventKind = "cycled"
	EventEnded     EventKind = "ended"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventCancelled EventKind = "cancelled"
	EventSwept     EventKind = "swept"
)

// Event is a lifecycle notification delivered to the Scheduler's observer.
//
// Counter is the timer fire count or the transition cycle count at the time
// of the event.
type Event struct {
	Kind    EventKind     `json:"kind"`
	Handle  HandleKind    `json:"handle"`
	ID      string        `json:"id"`
	Name    string        `json:"name,omitempty"`
	Counter int           `json:"counter"`
	At      time.Duration `json:"at"`
}
