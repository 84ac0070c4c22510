package storage

import (
	"errors"
	"time"

	"tempo/pkg/tempo"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is one journal line. Keep it compact and schema-stable.
type Record struct {
	At      time.Time     `json:"at"`
	Clock   time.Duration `json:"clock"` // scheduler clock when the event happened
	Handle  string        `json:"handle"`
	ID      string        `json:"id"`
	Name    string        `json:"name,omitempty"`
	Kind    string        `json:"kind"`
	Counter int           `json:"counter"`
}

func RecordFromEvent(at time.Time, e tempo.Event) Record {
	return Record{
		At:      at,
		Clock:   e.At,
		Handle:  string(e.Handle),
		ID:      e.ID,
		Name:    e.Name,
		Kind:    string(e.Kind),
		Counter: e.Counter,
	}
}
