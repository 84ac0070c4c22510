package config

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Playback PlaybackConfig `json:"playback"`

	// Housekeeping schedules the periodic jobs (cleanup sweep, journal
	// pruning, status line).
	Housekeeping HousekeepingConfig `json:"housekeeping"`

	// Journal is optional; nil disables the lifecycle journal.
	Journal *JournalConfig `json:"journal,omitempty"`
	Admin   AdminConfig    `json:"admin,omitempty"`

	Timers      []TimerConfig      `json:"timers,omitempty"`
	Transitions []TransitionConfig `json:"transitions,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

// LoggingFile configures the rotating JSON log file.
// Zero limits fall back to 10MB per file, 7 backups, 30 days.
type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// PlaybackConfig controls the frame loop.
//
// Speed is a preset (normal, fast, slow) or a positive multiplier; lower is
// faster. It can be changed at runtime by editing the config file.
type PlaybackConfig struct {
	Speed string `json:"speed,omitempty"`
	// FrameRate is a Go duration string (default "16ms").
	FrameRate string `json:"frame_rate,omitempty"`
}

// HousekeepingConfig schedules the periodic jobs.
//
// Each schedule accepts a cron expression (seconds optional), a cron
// descriptor ("@every 30s", "@hourly"), a Go duration ("30s") or a daily
// "HH:MM". An empty schedule disables the job.
//
// Defaults (when the whole section is omitted):
//   - cleanup: "@every 30s"
//   - journal_prune: "@hourly"
//   - status: "" (disabled)
//   - journal_retention: "24h"
type HousekeepingConfig struct {
	Cleanup          string `json:"cleanup,omitempty"`
	JournalPrune     string `json:"journal_prune,omitempty"`
	Status           string `json:"status,omitempty"`
	JournalRetention string `json:"journal_retention,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
}

// JournalConfig controls the lifecycle journal.
//
// Example:
//
//	"journal": { "driver": "sqlite", "path": "./tempo.db" }
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Kinds limits which lifecycle events are written. Empty means
	// ended, cancelled, cycled and swept.
	Kinds []string `json:"kinds,omitempty"`
}

// AdminConfig controls the optional HTTP control surface.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:7070").
//   - If you bind to a non-loopback address, set a token.
type AdminConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`  // default: "127.0.0.1:7070"
	Token   string `json:"token,omitempty"` // optional bearer token (do not log)

	// Pprof mounts /debug/pprof on the admin listener.
	Pprof                bool `json:"pprof,omitempty"`
	BlockProfileRate     int  `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int  `json:"mutex_profile_fraction,omitempty"`
}

// TimerConfig declares a timer created at startup.
type TimerConfig struct {
	Name string `json:"name"`
	// Every is a Go duration string.
	Every string `json:"every"`
	// Count is the number of fires; 0 repeats until cancelled.
	Count int `json:"count,omitempty"`
}

// TransitionConfig declares a transition created at startup. From seeds the
// animated object; To is the target of the first cycle.
//
// Cycle is a pointer so an explicit 0 (infinite) can be told apart from an
// omitted value (1).
type TransitionConfig struct {
	Name         string             `json:"name"`
	Time         string             `json:"time"`
	Cycle        *int               `json:"cycle,omitempty"`
	BackAndForth bool               `json:"back_and_forth,omitempty"`
	From         map[string]float64 `json:"from,omitempty"`
	To           map[string]float64 `json:"to"`
}

func (t TransitionConfig) Cycles() int {
	if t.Cycle == nil {
		return 1
	}
	return *t.Cycle
}
