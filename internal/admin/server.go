package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logx "tempo/pkg/logx"
)

const DefaultAddr = "127.0.0.1:7070"

// Config controls the optional admin HTTP listener.
type Config struct {
	Enabled bool
	Addr    string
	Token   string

	// Pprof mounts /debug/pprof on the admin router.
	Pprof                bool
	BlockProfileRate     int
	MutexProfileFraction int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	return c
}

// Server manages the admin listener lifecycle. Apply may be called again on
// config reload; a token change takes effect without a restart.
type Server struct {
	deps  Deps
	log   logx.Logger
	token atomic.Pointer[string]

	mu    sync.Mutex
	srv   *http.Server
	ln    net.Listener
	addr  string // configured address of the running server
	bound string
	pprof bool
}

func NewServer(d Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{deps: d, log: log.With(logx.String("comp", "admin"))}
	s.token.Store(new(string))
	return s
}

// Apply starts, stops or restarts the listener according to cfg.
func (s *Server) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()
	tok := cfg.Token
	s.token.Store(&tok)
	applyProfileRates(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}
	if s.srv != nil && s.addr == cfg.Addr && s.pprof == cfg.Pprof {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(cfg)
}

func (s *Server) startLocked(cfg Config) {
	h := NewHandler(s.deps, func() string { return *s.token.Load() }, s.log, cfg.Pprof)
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Warn("admin listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return
	}

	s.srv = srv
	s.ln = ln
	s.addr = cfg.Addr
	s.bound = ln.Addr().String()
	s.pprof = cfg.Pprof
	bound := s.bound

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("admin server error", logx.String("addr", bound), logx.Err(err))
		}
	}()
	s.log.Info("admin enabled", logx.String("addr", bound), logx.Bool("auth", cfg.Token != ""), logx.Bool("pprof", cfg.Pprof))
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, ln, bound := s.srv, s.ln, s.bound
	s.srv, s.ln, s.addr, s.bound = nil, nil, "", ""

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("admin shutdown error", logx.String("addr", bound), logx.Err(err))
	}
	_ = ln.Close()
	s.log.Info("admin disabled", logx.String("addr", bound))
}

// Addr reports the bound listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}
