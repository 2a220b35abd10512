// Package scheduler runs the stock background jobs: the periodic reconcile
// pass and the daily lot-expiry sweep.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clinic/pharmacy/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by RunNow while a run is in progress
var ErrAlreadyRunning = errors.New("job already running")

// PeriodicJob calls run every interval until stopped. Runs never overlap: a
// tick that arrives while the previous run is still going is skipped.
type PeriodicJob struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	run      func(ctx context.Context) error
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	busy    chan struct{}

	lastRun   time.Time
	lastError error
}

// NewPeriodicJob creates a job. timeout bounds each run; zero means interval.
func NewPeriodicJob(name string, interval, timeout time.Duration, run func(ctx context.Context) error, logger *zap.Logger) *PeriodicJob {
	if timeout <= 0 {
		timeout = interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodicJob{
		name:     name,
		interval: interval,
		timeout:  timeout,
		run:      run,
		logger:   logger.With(zap.String("job", name)),
		busy:     make(chan struct{}, 1),
	}
}

// Start launches the loop. Calling Start twice is a no-op.
func (j *PeriodicJob) Start(ctx context.Context) error {
	if j.interval <= 0 {
		return errors.New("job interval must be positive")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = true
	j.wg.Add(1)
	go j.loop(ctx)
	j.logger.Info("Job started", zap.Duration("interval", j.interval), zap.Duration("timeout", j.timeout))
	return nil
}

// Stop cancels the loop and waits for the current run, or until ctx ends
func (j *PeriodicJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = false
	j.cancel()
	j.mu.Unlock()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		j.logger.Info("Job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *PeriodicJob) loop(ctx context.Context) {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.RunNow(ctx); errors.Is(err, ErrAlreadyRunning) {
				j.logger.Debug("Previous run still in progress, tick skipped")
			}
		}
	}
}

// RunNow executes one run synchronously, outside the ticker
func (j *PeriodicJob) RunNow(ctx context.Context) error {
	select {
	case j.busy <- struct{}{}:
	default:
		return ErrAlreadyRunning
	}
	defer func() { <-j.busy }()

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	runCtx, span := telemetry.StartSpan(runCtx, "job."+j.name)
	start := time.Now()
	err := j.run(runCtx)
	telemetry.EndSpan(span, err)

	j.mu.Lock()
	j.lastRun = start
	j.lastError = err
	j.mu.Unlock()

	if err != nil {
		j.logger.Error("Job run failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	j.logger.Debug("Job run finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Status reports the start time and error of the last run
func (j *PeriodicJob) Status() (time.Time, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun, j.lastError
}

// IsRunning reports whether the loop is started
func (j *PeriodicJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
