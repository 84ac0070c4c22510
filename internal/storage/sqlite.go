package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	logx "tempo/pkg/logx"
)

//go:embed migrations.sql
var migrations string

const insertRecord = `INSERT INTO journal(at, at_ms, clock_ns, handle, handle_id, name, kind, counter)
VALUES(?,?,?,?,?,?,?,?)`

type sqliteStore struct {
	log logx.Logger

	mu     sync.RWMutex
	db     *sql.DB
	insert *sql.Stmt
}

// sqliteDSN puts the pragmas in the DSN so every pooled connection gets
// them, not just the first.
func sqliteDSN(path string, busy time.Duration) string {
	q := url.Values{}
	if busy > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return path + "?" + q.Encode()
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, cfg.BusyTimeout))
	if err != nil {
		return nil, err
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	ins, err := db.PrepareContext(ctx, insertRecord)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite prepare: %w", err)
	}
	log.Debug("journal opened", logx.String("path", path))
	return &sqliteStore{log: log, db: db, insert: ins}, nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := errors.Join(s.insert.Close(), s.db.Close())
	s.db, s.insert = nil, nil
	return err
}

func (s *sqliteStore) Append(ctx context.Context, r Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	var name any
	if strings.TrimSpace(r.Name) != "" {
		name = r.Name
	}
	_, err := s.insert.ExecContext(ctx,
		r.At.UTC().Format(time.RFC3339Nano), r.At.UnixMilli(), int64(r.Clock),
		r.Handle, r.ID, name, r.Kind, r.Counter,
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, clock_ns, handle, handle_id, COALESCE(name, ''), kind, counter
		 FROM journal ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, n)
	for rows.Next() {
		var (
			r     Record
			at    string
			clock int64
		)
		if err := rows.Scan(&at, &clock, &r.Handle, &r.ID, &r.Name, &r.Kind, &r.Counter); err != nil {
			return nil, err
		}
		if r.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("journal row at=%q: %w", at, err)
		}
		r.Clock = time.Duration(clock)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest first from the query; callers want oldest first.
	slices.Reverse(out)
	return out, nil
}

func (s *sqliteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal WHERE at_ms < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
