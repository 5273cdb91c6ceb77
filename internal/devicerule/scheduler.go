package devicerule

import (
	"context"
	"sync"
	"time"
)

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// maxRunTime bounds a single rule firing so a stuck device cannot pile up
// overlapping runs.
const maxRunTime = 30 * time.Second

// Scheduler fires each job on its own interval.
//
// Thread Safety: Start and Stop are safe for concurrent use. Runs of one job
// never overlap because each job has a single goroutine.
type Scheduler struct {
	exec   Executor
	jobs   []Job
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler for jobs. Nothing runs until Start.
func NewScheduler(exec Executor, jobs []Job, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		exec:   exec,
		jobs:   jobs,
		logger: logger,
		now:    time.Now,
	}
}

// Start launches one goroutine per job. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info("device rule scheduler started", "rules", len(s.jobs))
}

// Stop cancels every job and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("device rule scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Run(ctx, job)
		}
	}
}

// Run fires job once if the current time is inside its window.
// It reports whether the actions were executed successfully.
func (s *Scheduler) Run(ctx context.Context, job Job) bool {
	if job.Window != nil && !job.Window.Contains(s.now()) {
		s.logger.Debug("rule outside time window", "rule_id", job.RuleID, "window", job.Window.String())
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, maxRunTime)
	defer cancel()

	if err := s.exec.ExecuteRuleActions(ctx, job.DeviceID, job.Actions); err != nil {
		s.logger.Warn("rule actions failed",
			"rule_id", job.RuleID,
			"device_id", job.DeviceID,
			"error", err,
		)
		return false
	}

	s.logger.Debug("rule fired", "rule_id", job.RuleID, "device_id", job.DeviceID, "actions", len(job.Actions))
	return true
}
