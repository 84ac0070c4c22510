package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "tempo/pkg/logx"
)

const DefaultTimeout = 30 * time.Second

var ErrUnknownJob = errors.New("unknown job")

// Job is one periodic unit of work. The context is cancelled on timeout or Stop.
type Job func(ctx context.Context) error

// Config configures the service.
type Config struct {
	// Timezone is an IANA name used for cron and daily schedules ("" = local).
	Timezone string
	// Timeout bounds one job run (0 = DefaultTimeout).
	Timeout time.Duration
}

type jobDef struct {
	name    string
	spec    string
	sched   Schedule
	run     Job
	entryID cron.EntryID
	spread  time.Duration

	// guarded by Service.mu
	runs     uint64
	failures uint64
	lastRun  time.Time
	lastTook time.Duration
	lastErr  string
}

// Service triggers named jobs on cron or interval schedules.
type Service struct {
	cfg    Config
	log    logx.Logger
	parser cron.Parser

	mu     sync.Mutex
	loc    *time.Location
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []*jobDef
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Service{
		cfg: cfg,
		log: log.With(logx.String("comp", "housekeeping")),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Add registers a job. If the service is running the job is scheduled at once.
func (s *Service) Add(name, spec string, fn Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("job name required")
	}
	if fn == nil {
		return fmt.Errorf("job %q: nil func", name)
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}
	if !sched.Interval() {
		if _, err := s.parser.Parse(sched.Cron); err != nil {
			return fmt.Errorf("job %q: invalid cron %q: %w", name, sched.Cron, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(name) >= 0 {
		return fmt.Errorf("job %q already registered", name)
	}
	d := &jobDef{name: name, spec: strings.TrimSpace(spec), sched: sched, run: fn}
	s.jobs = append(s.jobs, d)
	if s.c != nil {
		if err := s.scheduleLocked(d); err != nil {
			s.jobs = s.jobs[:len(s.jobs)-1]
			return err
		}
	}
	s.log.Debug("job added", logx.String("job", name), logx.String("spec", d.spec), logx.String("source", sched.Source))
	return nil
}

// Remove unschedules a job. It reports whether the job existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findLocked(strings.TrimSpace(name))
	if i < 0 {
		return false
	}
	if s.c != nil && s.jobs[i].entryID != 0 {
		s.c.Remove(s.jobs[i].entryID)
	}
	s.jobs = slices.Delete(s.jobs, i, i+1)
	return true
}

// Run executes a registered job now, outside its schedule, and returns its error.
func (s *Service) Run(ctx context.Context, name string) error {
	s.mu.Lock()
	i := s.findLocked(strings.TrimSpace(name))
	var d *jobDef
	if i >= 0 {
		d = s.jobs[i]
	}
	s.mu.Unlock()
	if d == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, d)
}

func (s *Service) findLocked(name string) int {
	return slices.IndexFunc(s.jobs, func(d *jobDef) bool { return d.name == name })
}

// Start starts triggering. Jobs get a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	loc := s.loadLocation()
	s.loc = loc
	s.ctx, s.cancel = context.WithCancel(ctx)
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)
	for _, d := range s.jobs {
		if err := s.scheduleLocked(d); err != nil {
			s.log.Warn("job not scheduled", logx.String("job", d.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", loc.String()), logx.Int("jobs", len(s.jobs)))
}

// Stop stops triggering and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	for _, d := range s.jobs {
		d.entryID = 0
	}
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("stop timed out; jobs still running")
	}
	cancel()
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) scheduleLocked(d *jobDef) error {
	job := cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			return
		}
		_ = s.execute(ctx, d)
	})

	if d.sched.Interval() {
		sched, jitter := intervalWithSpread(d.sched.Every, time.Now().In(s.loc))
		d.spread = jitter
		d.entryID = s.c.Schedule(sched, job)
		return nil
	}
	d.spread = 0
	id, err := s.c.AddJob(d.sched.Cron, job)
	if err != nil {
		return err
	}
	d.entryID = id
	return nil
}

func (s *Service) execute(ctx context.Context, d *jobDef) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("job panic", logx.String("job", d.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
		took := time.Since(start)

		s.mu.Lock()
		d.runs++
		d.lastRun = start
		d.lastTook = took
		d.lastErr = ""
		if err != nil {
			d.failures++
			d.lastErr = err.Error()
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Warn("job failed", logx.String("job", d.name), logx.Duration("took", took), logx.Err(err))
			return
		}
		s.log.Trace("job done", logx.String("job", d.name), logx.Duration("took", took))
	}()
	return d.run(ctx)
}

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// cronLogger routes robfig/cron's internal logging into logx. Its info
// lines (start, wake, run, skip) are noisy, so they go to trace.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
