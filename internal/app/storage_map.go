package app

import (
	"fmt"
	"strings"
	"time"

	"tempo/internal/config"
	"tempo/internal/eventbus"
	"tempo/internal/storage"
	"tempo/pkg/tempo"
)

var defaultJournalKinds = []tempo.EventKind{
	tempo.EventEnded,
	tempo.EventCancelled,
	tempo.EventCycled,
	tempo.EventSwept,
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Journal == nil {
		return storage.Config{}, false, nil
	}
	jc := cfg.Journal
	driver := strings.ToLower(strings.TrimSpace(jc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(jc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("journal.path is required when journal.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("journal.busy_timeout", jc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown journal.driver: %s", jc.Driver)
	}
}

// journalTopics maps journal.kinds to bus topics.
func journalTopics(cfg *config.Config) []string {
	kinds := defaultJournalKinds
	if cfg != nil && cfg.Journal != nil && len(cfg.Journal.Kinds) > 0 {
		kinds = nil
		for _, k := range cfg.Journal.Kinds {
			if k = strings.ToLower(strings.TrimSpace(k)); k == "*" {
				return []string{eventbus.TopicPrefix + "*"}
			} else if k != "" {
				kinds = append(kinds, tempo.EventKind(k))
			}
		}
	}
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, eventbus.TopicPrefix+string(k))
	}
	return out
}
