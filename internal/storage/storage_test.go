package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "tempo/pkg/logx"
	"tempo/pkg/tempo"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if st != nil || err != nil {
			t.Fatalf("Open(%q) = %v, %v, want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestJournalDrivers(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "sub", "tempo.db")
			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()
			ctx := context.Background()

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			for i := range 5 {
				e := tempo.Event{
					Kind:    tempo.EventFired,
					Handle:  tempo.HandleTimer,
					ID:      "t1",
					Counter: i + 1,
					At:      time.Duration(i) * time.Second,
				}
				if i == 4 {
					e.Kind = tempo.EventEnded
					e.Name = "countdown"
				}
				if err := st.Append(ctx, RecordFromEvent(base.Add(time.Duration(i)*time.Hour), e)); err != nil {
					t.Fatalf("Append %d: %v", i, err)
				}
			}

			recent, err := st.Recent(ctx, 2)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(recent) != 2 || recent[0].Counter != 4 || recent[1].Counter != 5 {
				t.Fatalf("Recent(2) = %+v", recent)
			}
			last := recent[1]
			if last.Kind != "ended" || last.Name != "countdown" || last.Handle != "timer" || last.Clock != 4*time.Second {
				t.Fatalf("last record = %+v", last)
			}
			if !last.At.Equal(base.Add(4 * time.Hour)) {
				t.Fatalf("At = %v", last.At)
			}

			n, err := st.Prune(ctx, base.Add(2*time.Hour))
			if err != nil || n != 2 {
				t.Fatalf("Prune = %d, %v, want 2", n, err)
			}
			all, err := st.Recent(ctx, 100)
			if err != nil || len(all) != 3 || all[0].Counter != 3 {
				t.Fatalf("after prune: %+v, %v", all, err)
			}

			if err := st.Append(ctx, Record{Handle: "transition", ID: "x", Kind: "cycled"}); err != nil {
				t.Fatalf("Append after prune: %v", err)
			}
			if all, _ := st.Recent(ctx, 100); len(all) != 4 {
				t.Fatalf("records after append = %d, want 4", len(all))
			}
		})
	}
}

func TestFileJournalSkipsCorruptLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "tempo.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	_ = st.Append(ctx, Record{ID: "a", Kind: "ended"})

	f, err := os.OpenFile(filepath.Join(dir, "tempo.journal.jsonl"), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("{not json\n")
	_ = f.Close()
	_ = st.Append(ctx, Record{ID: "b", Kind: "ended"})

	got, err := st.Recent(ctx, 10)
	if err != nil || len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("Recent = %+v, %v", got, err)
	}
}

func TestClosedStore(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "j.db")}, logx.Nop())
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("%s Close: %v", driver, err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("%s second Close: %v", driver, err)
		}
		if err := st.Append(context.Background(), Record{}); !errors.Is(err, ErrDisabled) {
			t.Fatalf("%s Append after Close = %v, want ErrDisabled", driver, err)
		}
		if _, err := st.Recent(context.Background(), 1); !errors.Is(err, ErrDisabled) {
			t.Fatalf("%s Recent after Close = %v, want ErrDisabled", driver, err)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()
	dsn := sqliteDSN("/var/lib/tempo/j.db", 1500*time.Millisecond)
	for _, want := range []string{"/var/lib/tempo/j.db?", "busy_timeout%281500%29", "journal_mode%28WAL%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
	if strings.Contains(sqliteDSN("x.db", 0), "busy_timeout") {
		t.Fatal("zero busy timeout should be omitted")
	}
}
