package housekeeping

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed schedule string. Exactly one of Cron and Every is set.
//
// Supported forms:
//   - Cron (seconds optional): "*/5 * * * *", "*/10 * * * * *", "@hourly"
//   - Cron interval descriptor: "@every 30s"
//   - Interval duration: "30s", "2h30m"
//   - Daily wall clock time: "03:15" (in the service timezone)
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "every:" or "interval:" forces interval parsing
type Schedule struct {
	Cron   string
	Every  time.Duration
	Source string // "cron" | "every" | "duration" | "daily"
}

// Interval reports whether the schedule runs at a fixed interval.
func (s Schedule) Interval() bool { return s.Every > 0 }

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseSchedule parses a schedule string. Cron expressions are not checked
// here; the service parser rejects bad ones on Add.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Schedule{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return parseCron(expr)
	}
	for _, p := range []string{"every:", "interval:"} {
		if strings.HasPrefix(low, p) {
			d, err := parseInterval(s[len(p):])
			if err != nil {
				return Schedule{}, err
			}
			return Schedule{Every: d, Source: "duration"}, nil
		}
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}

	if reHHMM.MatchString(s) {
		h, m, err := parseHHMM(s)
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{Cron: fmt.Sprintf("%d %d * * *", m, h), Source: "daily"}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval must be > 0")
		}
		return Schedule{Every: d, Source: "duration"}, nil
	}

	return Schedule{}, fmt.Errorf(
		"invalid schedule %q (use cron like '*/5 * * * *', a daily time like '03:15', or a duration like '30s')",
		raw,
	)
}

// parseCron turns "@every <d>" into an interval so it gets a startup spread.
func parseCron(expr string) (Schedule, error) {
	low := strings.ToLower(expr)
	if strings.HasPrefix(low, "@every") {
		d, err := parseInterval(expr[len("@every"):])
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{Every: d, Source: "every"}, nil
	}
	return Schedule{Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use a Go duration like '30s' or '2h30m')", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
