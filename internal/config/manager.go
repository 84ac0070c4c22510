package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	logx "tempo/pkg/logx"
)

// ErrUnchanged is returned by Reload when the file decodes to the config
// that is already committed.
var ErrUnchanged = errors.New("config unchanged")

const validateTimeout = 5 * time.Second

type snapshot struct {
	cfg  *Config
	hash uint64
}

// Manager owns the committed config and fans reloads out to subscribers.
type Manager struct {
	path string
	log  logx.Logger

	cur       atomic.Pointer[snapshot]
	validator func(ctx context.Context, cfg *Config) error

	// reloadMu serializes Reload so two writers never race on commit.
	reloadMu sync.Mutex

	subsMu sync.Mutex
	subs   []chan *Config
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop()}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a hook that runs after Config.Validate and before a
// reloaded config is committed. Set it before Watch.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

func (m *Manager) read() (*Config, uint64, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, 0, err
	}
	return decode(m.path, b)
}

// Load reads and commits the file without notifying subscribers.
func (m *Manager) Load() (*Config, error) {
	cfg, h, err := m.read()
	if err != nil {
		return nil, err
	}
	m.cur.Store(&snapshot{cfg: cfg, hash: h})
	return cfg, nil
}

// Get returns the committed config, or nil before Load.
func (m *Manager) Get() *Config {
	if s := m.cur.Load(); s != nil {
		return s.cfg
	}
	return nil
}

// Subscribe returns a channel that receives every committed reload. Only the
// newest config matters, so a full channel drops its oldest entry.
func (m *Manager) Subscribe(buffer int) (<-chan *Config, func()) {
	ch := make(chan *Config, max(buffer, 1))
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if i := slices.Index(m.subs, ch); i >= 0 {
				m.subs = slices.Delete(m.subs, i, i+1)
				close(ch)
			}
		})
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		for range 2 {
			select {
			case ch <- cfg:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Reload re-reads the file and, if it changed and passes validation,
// commits and publishes it. Unchanged content yields ErrUnchanged.
func (m *Manager) Reload(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	cfg, h, err := m.read()
	if err != nil {
		return err
	}
	if cur := m.cur.Load(); cur != nil && cur.hash == h {
		return ErrUnchanged
	}
	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			return fmt.Errorf("rejected: %w", err)
		}
	}
	m.cur.Store(&snapshot{cfg: cfg, hash: h})
	m.publish(cfg)
	m.log.Debug("config published", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%016x", h)))
	return nil
}
