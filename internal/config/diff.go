package config

import (
	"reflect"
	"sort"
	"strings"

	logx "tempo/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !trimEq(oldCfg.Playback.Speed, newCfg.Playback.Speed) ||
		!trimEq(oldCfg.Playback.FrameRate, newCfg.Playback.FrameRate) {
		changed = append(changed, "playback")
		attrs = append(attrs,
			logx.String("playback.speed", strings.TrimSpace(newCfg.Playback.Speed)),
			logx.String("playback.frame_rate", strings.TrimSpace(newCfg.Playback.FrameRate)),
		)
	}

	if oldCfg.Housekeeping != newCfg.Housekeeping {
		changed = append(changed, "housekeeping")
		attrs = append(attrs,
			logx.String("housekeeping.cleanup", newCfg.Housekeeping.Cleanup),
			logx.String("housekeeping.journal_prune", newCfg.Housekeeping.JournalPrune),
			logx.String("housekeeping.status", newCfg.Housekeeping.Status),
		)
	}

	// Nil means disabled.
	var oJ, nJ JournalConfig
	if oldCfg.Journal != nil {
		oJ = *oldCfg.Journal
	}
	if newCfg.Journal != nil {
		nJ = *newCfg.Journal
	}
	if !reflect.DeepEqual(oJ, nJ) {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.String("journal.driver", strings.TrimSpace(nJ.Driver)),
			logx.Bool("journal.path_set", strings.TrimSpace(nJ.Path) != ""),
			logx.String("journal.busy_timeout", strings.TrimSpace(nJ.BusyTimeout)),
		)
	}

	if oldCfg.Admin.Enabled != newCfg.Admin.Enabled ||
		!trimEq(oldCfg.Admin.Addr, newCfg.Admin.Addr) ||
		!trimEq(oldCfg.Admin.Token, newCfg.Admin.Token) ||
		oldCfg.Admin.Pprof != newCfg.Admin.Pprof ||
		oldCfg.Admin.BlockProfileRate != newCfg.Admin.BlockProfileRate ||
		oldCfg.Admin.MutexProfileFraction != newCfg.Admin.MutexProfileFraction {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", newCfg.Admin.Enabled),
			logx.String("admin.addr", strings.TrimSpace(newCfg.Admin.Addr)),
			logx.Bool("admin.token_set", strings.TrimSpace(newCfg.Admin.Token) != ""),
			logx.Bool("admin.pprof", newCfg.Admin.Pprof),
		)
	}

	if !reflect.DeepEqual(oldCfg.Timers, newCfg.Timers) {
		changed = append(changed, "timers")
		attrs = append(attrs, logx.Int("timers.count", len(newCfg.Timers)))
	}
	if !reflect.DeepEqual(oldCfg.Transitions, newCfg.Transitions) {
		changed = append(changed, "transitions")
		attrs = append(attrs, logx.Int("transitions.count", len(newCfg.Transitions)))
	}

	sort.Strings(changed)
	return changed, attrs
}

// LiveSections are applied without a restart.
var LiveSections = map[string]bool{
	"logging":  true,
	"playback": true,
	"admin":    true,
}

// RestartRequired returns the changed sections that only take effect after
// a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}

func trimEq(a, b string) bool { return strings.TrimSpace(a) == strings.TrimSpace(b) }
