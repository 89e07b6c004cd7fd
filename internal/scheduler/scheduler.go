// Package scheduler runs the periodic accuracy jobs (comparison, retention
// sweep, drift evaluation) on fixed intervals with single-flight semantics.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/parkfan/waitwatch-go/internal/logging"
)

// Package-level logger for the scheduler
var schedulerLogger *slog.Logger

func init() {
	var err error
	schedulerLogger, _, err = logging.NewFileLogger("logs/scheduler.log", "scheduler", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize scheduler file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
		schedulerLogger = slog.New(fbHandler).With("service", "scheduler")
	}
}

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running atomic.Bool
}

// Scheduler owns a set of jobs and their tickers. Each job runs on its own
// goroutine, a tick that arrives while the previous run is still in flight
// is skipped rather than queued.
type Scheduler struct {
	jobs     []*Job
	lastRuns *gocache.Cache
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		lastRuns: gocache.New(gocache.NoExpiration, 0),
	}
}

// AddJob registers a job. Must be called before Start.
func (s *Scheduler) AddJob(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, &Job{
		Name:     name,
		Interval: interval,
		Run:      run,
	})
}

// LastRun returns when the named job last finished, or false if it has not
// run yet.
func (s *Scheduler) LastRun(name string) (time.Time, bool) {
	if v, found := s.lastRuns.Get(name); found {
		return v.(time.Time), true
	}
	return time.Time{}, false
}

// Start launches all registered jobs. Each runs once immediately, then on
// its interval, until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context, wg *sync.WaitGroup) {
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			s.runLoop(ctx, job)
		}(job)
	}
}

func (s *Scheduler) runLoop(ctx context.Context, job *Job) {
	schedulerLogger.Info("Job scheduled",
		"job", job.Name,
		"interval", job.Interval.String())

	s.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			schedulerLogger.Info("Job stopped", "job", job.Name)
			return
		case <-ticker.C:
			s.execute(ctx, job)
		}
	}
}

// execute runs the job once unless a previous run is still in flight.
func (s *Scheduler) execute(ctx context.Context, job *Job) {
	if !job.running.CompareAndSwap(false, true) {
		schedulerLogger.Warn("Skipping tick, previous run still in flight", "job", job.Name)
		return
	}
	defer job.running.Store(false)

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		schedulerLogger.Error("Job run failed",
			"job", job.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
	} else {
		schedulerLogger.Debug("Job run finished",
			"job", job.Name,
			"duration_ms", time.Since(start).Milliseconds())
	}

	s.lastRuns.Set(job.Name, time.Now(), gocache.NoExpiration)
}
