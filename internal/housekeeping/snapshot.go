package housekeeping

import "time"

// JobInfo describes one registered job.
type JobInfo struct {
	Name     string        `json:"name"`
	Spec     string        `json:"spec"`
	Source   string        `json:"source"`
	Spread   time.Duration `json:"spread,omitempty"`
	Next     time.Time     `json:"next,omitzero"`
	Prev     time.Time     `json:"prev,omitzero"`
	Runs     uint64        `json:"runs"`
	Failures uint64        `json:"failures"`
	LastRun  time.Time     `json:"last_run,omitzero"`
	LastTook time.Duration `json:"last_took,omitempty"`
	LastErr  string        `json:"last_error,omitempty"`
}

type Snapshot struct {
	Running  bool      `json:"running"`
	Timezone string    `json:"timezone"`
	Jobs     []JobInfo `json:"jobs"`
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc := s.loc
	if loc == nil {
		loc = s.loadLocation()
	}
	out := Snapshot{Running: s.c != nil, Timezone: loc.String(), Jobs: make([]JobInfo, 0, len(s.jobs))}
	for _, d := range s.jobs {
		it := JobInfo{
			Name:     d.name,
			Spec:     d.spec,
			Source:   d.sched.Source,
			Spread:   d.spread,
			Runs:     d.runs,
			Failures: d.failures,
			LastRun:  d.lastRun,
			LastTook: d.lastTook,
			LastErr:  d.lastErr,
		}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		out.Jobs = append(out.Jobs, it)
	}
	return out
}
