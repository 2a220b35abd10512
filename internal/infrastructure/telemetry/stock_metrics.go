package telemetry

import (
	"context"
	"errors"
	"time"

	appinv "github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MeterName names the stock instruments
const MeterName = "github.com/clinic/pharmacy/stock"

// StockSnapshot is the point-in-time stock health read by the gauges
type StockSnapshot struct {
	PendingMovements int64
	ErroredMovements int64
	ExpiredLotsStock int64 // expired lots still holding units
}

// StockSnapshotProvider reads StockSnapshot from storage
type StockSnapshotProvider interface {
	StockSnapshot(ctx context.Context) (StockSnapshot, error)
}

// StockMetrics records ledger and reconcile activity. It implements the
// services' StockRecorder.
type StockMetrics struct {
	recorded  metric.Int64Counter
	rejected  metric.Int64Counter
	replayed  metric.Int64Counter
	reconcile metric.Float64Histogram
	gauges    metric.Registration
	logger    *zap.Logger
}

// NewStockMetrics creates the instruments on meter. When provider is not nil
// the ledger backlog gauges are observed from it on every collection.
func NewStockMetrics(meter metric.Meter, provider StockSnapshotProvider, logger *zap.Logger) (*StockMetrics, error) {
	if meter == nil {
		return nil, errors.New("meter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &StockMetrics{logger: logger}

	var err error
	if m.recorded, err = meter.Int64Counter("pharmacy.stock.movements.recorded",
		metric.WithDescription("Ledger entries committed"), metric.WithUnit("{movement}")); err != nil {
		return nil, err
	}
	if m.rejected, err = meter.Int64Counter("pharmacy.stock.movements.rejected",
		metric.WithDescription("Movements refused before commit"), metric.WithUnit("{movement}")); err != nil {
		return nil, err
	}
	if m.replayed, err = meter.Int64Counter("pharmacy.stock.reconcile.movements",
		metric.WithDescription("Entries consumed by reconcile, by outcome"), metric.WithUnit("{movement}")); err != nil {
		return nil, err
	}
	if m.reconcile, err = meter.Float64Histogram("pharmacy.stock.reconcile.duration",
		metric.WithDescription("Reconcile pass duration per medication"), metric.WithUnit("s")); err != nil {
		return nil, err
	}

	if provider == nil {
		return m, nil
	}
	pending, err := meter.Int64ObservableGauge("pharmacy.stock.movements.pending",
		metric.WithDescription("Ledger entries awaiting reconcile"), metric.WithUnit("{movement}"))
	if err != nil {
		return nil, err
	}
	errored, err := meter.Int64ObservableGauge("pharmacy.stock.movements.errored",
		metric.WithDescription("Ledger entries parked for manual review"), metric.WithUnit("{movement}"))
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64ObservableGauge("pharmacy.stock.lots.expired_with_stock",
		metric.WithDescription("Expired lots still holding units"), metric.WithUnit("{lot}"))
	if err != nil {
		return nil, err
	}
	m.gauges, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		snap, err := provider.StockSnapshot(ctx)
		if err != nil {
			m.logger.Warn("Failed to read stock snapshot for metrics", zap.Error(err))
			return nil
		}
		o.ObserveInt64(pending, snap.PendingMovements)
		o.ObserveInt64(errored, snap.ErroredMovements)
		o.ObserveInt64(expired, snap.ExpiredLotsStock)
		return nil
	}, pending, errored, expired)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MovementRecorded implements StockRecorder
func (m *StockMetrics) MovementRecorded(ctx context.Context, t inventory.MovementType) {
	m.recorded.Add(ctx, 1, metric.WithAttributes(attribute.String("movement.type", string(t))))
}

// MovementRejected implements StockRecorder
func (m *StockMetrics) MovementRejected(ctx context.Context, t inventory.MovementType, code string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("movement.type", string(t)),
		attribute.String("error.code", code),
	))
}

// ReconcileFinished implements StockRecorder
func (m *StockMetrics) ReconcileFinished(ctx context.Context, _ uuid.UUID, synchronized, errored int, elapsed time.Duration) {
	if synchronized > 0 {
		m.replayed.Add(ctx, int64(synchronized), metric.WithAttributes(attribute.String("outcome", "synchronized")))
	}
	if errored > 0 {
		m.replayed.Add(ctx, int64(errored), metric.WithAttributes(attribute.String("outcome", "error")))
	}
	m.reconcile.Record(ctx, elapsed.Seconds())
}

// Close unregisters the gauge callback
func (m *StockMetrics) Close() error {
	if m.gauges == nil {
		return nil
	}
	return m.gauges.Unregister()
}

var _ appinv.StockRecorder = (*StockMetrics)(nil)
