package logx

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

// FileConfig enables the rotating JSON file sink.
//
// Zero limits fall back to 10MB per file, 7 backups, 30 days.
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

const (
	consoleTimeFormat = "15:04:05.000"
	defaultLogPath    = "./tempod.log"
)

// Service owns the sinks. Apply swaps them at runtime and every Logger
// handed out by the service picks up the change.
type Service struct {
	console io.Writer
	root    atomic.Pointer[zerolog.Logger]

	mu   sync.Mutex
	cfg  Config
	file *lumberjack.Logger
}

// New builds the service from cfg and returns it with its root logger.
func New(cfg Config) (*Service, Logger) {
	// Per-logger levels do the filtering, so the global gate stays open.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	zerolog.ErrorFieldName = "err"

	s := &Service{console: os.Stdout}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() *zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return zl
	}
	return &nopRoot
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Level returns the active level.
func (s *Service) Level() Level { return s.current().GetLevel() }

// Apply swaps sinks and level. The log file stays open when its settings
// did not change, so a level-only reload never touches the file.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil && (!cfg.File.Enabled || cfg.File != s.cfg.File) {
		_ = s.file.Close()
		s.file = nil
	}
	if cfg.File.Enabled && s.file == nil {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogPath
		}
		s.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positiveOr(cfg.File.MaxSizeMB, 10),
			MaxBackups: positiveOr(cfg.File.MaxBackups, 7),
			MaxAge:     positiveOr(cfg.File.MaxAgeDays, 30),
			Compress:   cfg.File.Compress,
		}
	}
	s.cfg = cfg

	var sinks []io.Writer
	if s.file != nil {
		sinks = append(sinks, zerolog.SyncWriter(s.file))
	}
	if cfg.Console || len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(s.console))
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Rotate starts a new log file and keeps the old one as a backup. It is a
// no-op without a file sink.
func (s *Service) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Rotate()
}

// Close closes the log file. Later lines go to the console only.
func (s *Service) Close() error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	cfg.File = FileConfig{}
	s.Apply(cfg)
	return nil
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   consoleTimeFormat,
		FormatCaller: func(i any) string { s, _ := i.(string); return s },
	}
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
