package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"tempo/pkg/tempo"
)

const sampleYAML = `
logging:
  level: debug
  console: true
playback:
  speed: fast
  frame_rate: 10ms
housekeeping:
  cleanup: "@every 10s"
  journal_retention: 2h
journal:
  driver: sqlite
  path: ./tempo.db
timers:
  - name: heartbeat
    every: 1s
  - name: countdown
    every: 500ms
    count: 3
transitions:
  - name: pulse
    time: 2s
    cycle: 0
    back_and_forth: true
    from: {scale: 1}
    to: {scale: 1.5}
`

func TestParseBytesYAML(t *testing.T) {
	t.Parallel()
	cfg, err := ParseBytes("tempo.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	pb, err := cfg.ParsePlayback()
	if err != nil {
		t.Fatalf("ParsePlayback: %v", err)
	}
	if pb.Speed != tempo.SpeedFast || pb.FrameRate != 10*time.Millisecond {
		t.Fatalf("playback = %+v", pb)
	}
	if len(cfg.Timers) != 2 || cfg.Timers[1].Count != 3 {
		t.Fatalf("timers = %+v", cfg.Timers)
	}
	tr := cfg.Transitions[0]
	if tr.Cycles() != 0 || !tr.BackAndForth || tr.To["scale"] != 1.5 {
		t.Fatalf("transition = %+v", tr)
	}
	if cfg.Journal == nil || cfg.Journal.Driver != "sqlite" {
		t.Fatalf("journal = %+v", cfg.Journal)
	}
}

func TestParseBytesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := ParseBytes("tempo.json", []byte(`{"logging":{"level":"info"},"transitions":[{"name":"a","time":"1s","to":{"x":1}}]}`))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	pb, _ := cfg.ParsePlayback()
	if pb.Speed != tempo.SpeedNormal || pb.FrameRate != DefaultFrameRate {
		t.Fatalf("playback defaults = %+v", pb)
	}
	if got := cfg.Transitions[0].Cycles(); got != 1 {
		t.Fatalf("default cycle = %d, want 1", got)
	}
	if hk := cfg.EffectiveHousekeeping(); hk.Cleanup != DefaultCleanup || hk.JournalPrune != DefaultJournalPrune || hk.Status != "" {
		t.Fatalf("housekeeping defaults = %+v", hk)
	}
}

func TestParseBytesRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{name: "unknown field", file: "c.json", body: `{"broker":{}}`, wantErr: "unknown field"},
		{name: "trailing data", file: "c.json", body: `{} {}`, wantErr: "trailing data"},
		{name: "bad speed", file: "c.json", body: `{"playback":{"speed":"warp"}}`, wantErr: "playback.speed"},
		{name: "infinite speed", file: "c.yaml", body: "playback: {speed: inf}", wantErr: "playback.speed"},
		{name: "huge speed", file: "c.json", body: `{"playback":{"speed":1e300}}`, wantErr: "playback.speed"},
		{name: "zero timer", file: "c.yaml", body: "timers: [{name: a, every: 0s}]", wantErr: "timers[0].every"},
		{name: "duplicate name", file: "c.yaml", body: "timers: [{name: a, every: 1s}, {name: a, every: 2s}]", wantErr: "duplicate name"},
		{name: "transition without props", file: "c.yaml", body: "transitions: [{name: t, time: 1s}]", wantErr: "transitions[0].to"},
		{name: "endless zero-length transition", file: "c.yaml", body: "transitions: [{name: t, cycle: 0, to: {x: 1}}]", wantErr: "transitions[0].time"},
		{name: "endless zero time", file: "c.json", body: `{"transitions":[{"name":"t","time":0,"cycle":0,"to":{"x":1}}]}`, wantErr: "transitions[0].time"},
		{name: "bad schedule", file: "c.yaml", body: "housekeeping: {cleanup: soon}", wantErr: "housekeeping.cleanup"},
		{name: "journal driver", file: "c.yaml", body: "journal: {driver: redis}", wantErr: "journal.driver"},
		{name: "bad yaml", file: "c.yaml", body: "logging: [", wantErr: "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBytes(tt.file, []byte(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ParseBytes error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Playback: PlaybackConfig{Speed: "normal"}, Admin: AdminConfig{Token: "a"}}
	newCfg := &Config{
		Playback: PlaybackConfig{Speed: "slow"},
		Admin:    AdminConfig{Token: "b"},
		Timers:   []TimerConfig{{Name: "x", Every: "1s"}},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"admin", "playback", "timers"}
	if !slices.Equal(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	if got := RestartRequired(changed); !slices.Equal(got, []string{"timers"}) {
		t.Fatalf("RestartRequired = %v", got)
	}

	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tempo.yaml")
	if err := os.WriteFile(path, []byte("playback: {speed: normal}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch, unsub := m.Subscribe(1)
	defer unsub()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("playback: {speed: slow}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-ch:
		if cfg.Playback.Speed != "slow" {
			t.Fatalf("published speed = %q", cfg.Playback.Speed)
		}
		if m.Get() != cfg {
			t.Fatal("published config not committed")
		}
	case <-ctx.Done():
		t.Fatal("no config published")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestExampleConfigParses(t *testing.T) {
	t.Parallel()
	b, err := os.ReadFile(filepath.Join("..", "..", "tempo.example.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := ParseBytes("tempo.example.yaml", b)
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	if len(cfg.Timers) == 0 || len(cfg.Transitions) == 0 {
		t.Fatalf("example config has no handles: %+v", cfg)
	}
	if _, err := cfg.ParsePlayback(); err != nil {
		t.Fatalf("ParsePlayback: %v", err)
	}
}

func TestReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tempo.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("playback: {speed: normal}\n")

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch, unsub := m.Subscribe(1)
	ctx := context.Background()

	// Comments and layout do not count as a change.
	write("# tuned\nplayback:\n  speed: normal\n")
	if err := m.Reload(ctx); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("Reload after comment = %v, want ErrUnchanged", err)
	}

	m.SetValidator(func(_ context.Context, c *Config) error {
		if c.Playback.Speed == "slow" {
			return errors.New("no slow")
		}
		return nil
	})
	write("playback: {speed: slow}\n")
	if err := m.Reload(ctx); err == nil || !strings.Contains(err.Error(), "no slow") {
		t.Fatalf("Reload rejected = %v", err)
	}
	if m.Get().Playback.Speed != "normal" {
		t.Fatal("rejected config was committed")
	}

	write("playback: {speed: fast}\n")
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg := <-ch; cfg.Playback.Speed != "fast" {
		t.Fatalf("published %q", cfg.Playback.Speed)
	}

	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel open after unsubscribe")
	}
}

func TestNumericDurationsAreMilliseconds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "yaml", file: "c.yaml", body: "playback: {frame_rate: 20}\ntimers: [{name: a, every: 250}]\ntransitions: [{name: b, time: 1500, from: {time: 2}, to: {time: 10}}]\n"},
		{name: "json", file: "c.json", body: `{"playback":{"frame_rate":20},"timers":[{"name":"a","every":250}],"transitions":[{"name":"b","time":1500,"from":{"time":2},"to":{"time":10}}]}`},
		{name: "sniffed json", file: "tempo.conf", body: `{"playback":{"frame_rate":"20ms"},"timers":[{"name":"a","every":"250"}],"transitions":[{"name":"b","time":"1.5s","from":{"time":2},"to":{"time":10}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := ParseBytes(tt.file, []byte(tt.body))
			if err != nil {
				t.Fatalf("ParseBytes: %v", err)
			}
			pb, _ := cfg.ParsePlayback()
			if pb.FrameRate != 20*time.Millisecond {
				t.Fatalf("frame_rate = %v", pb.FrameRate)
			}
			if d, _ := ParseDurationField("every", cfg.Timers[0].Every); d != 250*time.Millisecond {
				t.Fatalf("every = %v", d)
			}
			tr := cfg.Transitions[0]
			if d, _ := ParseDurationField("time", tr.Time); d != 1500*time.Millisecond {
				t.Fatalf("time = %v", d)
			}
			if tr.To["time"] != 10 {
				t.Fatalf("property named time was rewritten: %+v", tr.To)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "250", want: 250 * time.Millisecond},
		{raw: "0.5", want: 500 * time.Microsecond},
		{raw: "1.5s", want: 1500 * time.Millisecond},
		{raw: " 2m ", want: 2 * time.Minute},
		{raw: "-1s", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "inf", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("x", tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, %v", tt.raw, got, err)
		}
	}
}

func TestNumericSpeed(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct{ file, body string }{
		{"c.yaml", "playback: {speed: 0.25}"},
		{"c.json", `{"playback":{"speed":0.25}}`},
		{"c.yaml", "playback: {speed: \"0.25\"}"},
	} {
		cfg, err := ParseBytes(tt.file, []byte(tt.body))
		if err != nil {
			t.Fatalf("ParseBytes(%s): %v", tt.body, err)
		}
		if pb, err := cfg.ParsePlayback(); err != nil || pb.Speed != 0.25 {
			t.Fatalf("%s: speed = %v, %v", tt.body, pb.Speed, err)
		}
	}
}
