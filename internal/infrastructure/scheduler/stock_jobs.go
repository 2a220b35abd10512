package scheduler

import (
	"context"
	"time"

	appinv "github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciler is the part of the reconcile service the trigger drives
type Reconciler interface {
	Reconcile(ctx context.Context, medicationID *uuid.UUID) (*appinv.ReconcileResult, error)
}

// LotExpirer flags lots past their expiry date
type LotExpirer interface {
	ExpireLots(ctx context.Context, now time.Time) (int, error)
}

// NewReconcileTrigger runs a full reconcile pass every interval
func NewReconcileTrigger(r Reconciler, interval, timeout time.Duration, logger *zap.Logger) *PeriodicJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewPeriodicJob("reconcile", interval, timeout, func(ctx context.Context) error {
		result, err := r.Reconcile(ctx, nil)
		if err != nil {
			return err
		}
		if len(result.Synchronized)+len(result.Errored)+len(result.Skipped) > 0 {
			logger.Info("Scheduled reconcile finished",
				zap.Int("synchronized", len(result.Synchronized)),
				zap.Int("errored", len(result.Errored)),
				zap.Int("skipped", len(result.Skipped)),
			)
		}
		return nil
	}, logger)
}

// NewExpirySweep flags expired lots every interval
func NewExpirySweep(e LotExpirer, interval time.Duration, logger *zap.Logger) *PeriodicJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewPeriodicJob("lot-expiry", interval, time.Minute, func(ctx context.Context) error {
		n, err := e.ExpireLots(ctx, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("Lots flagged expired", zap.Int("count", n))
		}
		return nil
	}, logger)
}

// Jobs is the set of background jobs enabled by configuration
type Jobs []*PeriodicJob

// NewStockJobs builds the jobs cfg enables
func NewStockJobs(cfg config.SchedulerConfig, r Reconciler, e LotExpirer, logger *zap.Logger) Jobs {
	var jobs Jobs
	if cfg.ReconcileEnabled && cfg.ReconcileInterval > 0 {
		jobs = append(jobs, NewReconcileTrigger(r, cfg.ReconcileInterval, cfg.ReconcileTimeout, logger))
	}
	if cfg.ExpirySweep {
		jobs = append(jobs, NewExpirySweep(e, 6*time.Hour, logger))
	}
	return jobs
}

// Start starts every job, stopping the ones already started on failure
func (js Jobs) Start(ctx context.Context) error {
	for i, j := range js {
		if err := j.Start(ctx); err != nil {
			_ = js[:i].Stop(context.Background())
			return err
		}
	}
	return nil
}

// Stop stops every job and returns the first error
func (js Jobs) Stop(ctx context.Context) error {
	var first error
	for _, j := range js {
		if err := j.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
