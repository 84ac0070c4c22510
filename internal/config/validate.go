package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tempo/internal/housekeeping"
	"tempo/pkg/tempo"
)

const (
	DefaultFrameRate        = 16 * time.Millisecond
	DefaultCleanup          = "@every 30s"
	DefaultJournalPrune     = "@hourly"
	DefaultJournalRetention = 24 * time.Hour
	DefaultAdminAddr        = "127.0.0.1:7070"
)

// Playback is the parsed form of PlaybackConfig.
type Playback struct {
	Speed     tempo.Speed
	FrameRate time.Duration
}

func (c *Config) ParsePlayback() (Playback, error) {
	sp, err := tempo.ParseSpeed(c.Playback.Speed)
	if err != nil {
		return Playback{}, fmt.Errorf("playback.speed: %w", err)
	}
	fr, err := ParseDurationOrDefault("playback.frame_rate", c.Playback.FrameRate, DefaultFrameRate)
	if err != nil {
		return Playback{}, err
	}
	return Playback{Speed: sp, FrameRate: fr}, nil
}

// EffectiveHousekeeping returns the housekeeping section with defaults
// filled in when the whole section was omitted.
func (c *Config) EffectiveHousekeeping() HousekeepingConfig {
	if c.Housekeeping == (HousekeepingConfig{}) {
		return HousekeepingConfig{Cleanup: DefaultCleanup, JournalPrune: DefaultJournalPrune}
	}
	return c.Housekeeping
}

// Validate checks everything that can be checked without touching the
// outside world. Cron fields are checked again when jobs are registered.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := c.ParsePlayback(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("housekeeping.journal_retention", c.Housekeeping.JournalRetention); err != nil {
		errs = append(errs, err)
	}
	for key, spec := range map[string]string{
		"housekeeping.cleanup":       c.Housekeeping.Cleanup,
		"housekeeping.journal_prune": c.Housekeeping.JournalPrune,
		"housekeeping.status":        c.Housekeeping.Status,
	} {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		if _, err := housekeeping.ParseSchedule(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if tz := strings.TrimSpace(c.Housekeeping.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("housekeeping.timezone: %w", err))
		}
	}
	if j := c.Journal; j != nil {
		switch strings.ToLower(strings.TrimSpace(j.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("journal.driver: unknown driver %q", j.Driver))
		}
		if _, err := ParseDurationField("journal.busy_timeout", j.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	seen := map[string]struct{}{}
	for i, t := range c.Timers {
		path := fmt.Sprintf("timers[%d]", i)
		if err := checkName(path, t.Name, seen); err != nil {
			errs = append(errs, err)
		}
		d, err := ParseDurationField(path+".every", t.Every)
		if err != nil {
			errs = append(errs, err)
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("%s.every: must be > 0", path))
		}
		if t.Count < 0 {
			errs = append(errs, fmt.Errorf("%s.count: must be >= 0", path))
		}
	}
	for i, t := range c.Transitions {
		path := fmt.Sprintf("transitions[%d]", i)
		if err := checkName(path, t.Name, seen); err != nil {
			errs = append(errs, err)
		}
		d, err := ParseDurationField(path+".time", t.Time)
		if err != nil {
			errs = append(errs, err)
		} else if d <= 0 && t.Cycles() == 0 {
			errs = append(errs, fmt.Errorf("%s.time: must be > 0 when cycle is 0", path))
		}
		if t.Cycles() < 0 {
			errs = append(errs, fmt.Errorf("%s.cycle: must be >= 0", path))
		}
		if len(t.To) == 0 {
			errs = append(errs, fmt.Errorf("%s.to: at least one property is required", path))
		}
	}
	return errors.Join(errs...)
}

func checkName(path, name string, seen map[string]struct{}) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s.name: required", path)
	}
	if _, dup := seen[name]; dup {
		return fmt.Errorf("%s.name: duplicate name %q", path, name)
	}
	seen[name] = struct{}{}
	return nil
}
