package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tempo/pkg/tempo"
)

// TopicPrefix prefixes every topic derived from a scheduler lifecycle event.
const TopicPrefix = "tempo."

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
type Event struct {
	Type string
	Time time.Time
	Data any
}

// FromTempo wraps a scheduler lifecycle event. The topic is
// "tempo.<kind>", e.g. "tempo.ended".
func FromTempo(e tempo.Event) Event {
	return Event{Type: TopicPrefix + string(e.Kind), Time: time.Now(), Data: e}
}

// Tempo unwraps an event built by FromTempo.
func (e Event) Tempo() (tempo.Event, bool) {
	te, ok := e.Data.(tempo.Event)
	return te, ok
}

type Bus interface {
	Publish(e Event)
	// Subscribe receives events whose Type matches one of topics. A topic
	// ending in "*" matches by prefix; no topics means everything.
	Subscribe(buffer int, topics ...string) (ch <-chan Event, unsubscribe func())
	// Dropped counts deliveries skipped because a subscriber was full.
	Dropped() uint64
}

// New returns a simple in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*sub{}}
}

type sub struct {
	ch     chan Event
	topics []string
}

func (s *sub) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	for _, t := range s.topics {
		if p, ok := strings.CutSuffix(t, "*"); ok {
			if strings.HasPrefix(topic, p) {
				return true
			}
			continue
		}
		if t == topic {
			return true
		}
	}
	return false
}

type memBus struct {
	mu      sync.RWMutex
	subs    map[uint64]*sub
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while sending.
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Type) {
			targets = append(targets, s.ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		// A concurrent unsubscribe may close ch; recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
				b.dropped.Add(1)
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int, topics ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub{ch: make(chan Event, buffer), topics: topics}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, unsub
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }
