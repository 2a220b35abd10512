package report

import (
	"context"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/report"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"go.uber.org/zap"
)

const snapshotPageSize = 500

// DashboardRequest selects the KPI window
type DashboardRequest struct {
	From              time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To                time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	ExpiryWarningDays int       `form:"expiry_warning_days" binding:"omitempty,min=1,max=730"`
}

// DashboardService loads a snapshot of the stores and reduces it to KPIs
type DashboardService struct {
	medications inventory.MedicationRepository
	lots        inventory.LotRepository
	movements   inventory.MovementRepository
	orders      purchasing.SupplierOrderRepository
	logger      *zap.Logger
	warnDays    int
	now         func() time.Time
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(
	medications inventory.MedicationRepository,
	lots inventory.LotRepository,
	movements inventory.MovementRepository,
	orders purchasing.SupplierOrderRepository,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		medications: medications,
		lots:        lots,
		movements:   movements,
		orders:      orders,
		logger:      logger,
		warnDays:    report.DefaultExpiryWarningDays,
		now:         time.Now,
	}
}

// SetExpiryWarningDays sets the default look-ahead for expiring lots
func (s *DashboardService) SetExpiryWarningDays(days int) {
	if days > 0 {
		s.warnDays = days
	}
}

// Dashboard computes the KPIs for the requested window
func (s *DashboardService) Dashboard(ctx context.Context, req DashboardRequest) (*report.Dashboard, error) {
	window := shared.TimeWindow{From: req.From, To: req.To}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	opts := report.Options{Now: s.now(), ExpiryWarningDays: s.warnDays}
	if req.ExpiryWarningDays > 0 {
		opts.ExpiryWarningDays = req.ExpiryWarningDays
	}

	start := time.Now()
	snap, err := s.loadSnapshot(ctx, window)
	if err != nil {
		return nil, err
	}
	d, err := report.ComputeDashboard(snap, window, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("dashboard computed",
		zap.Time("from", window.From),
		zap.Time("to", window.To),
		zap.Int("lots", len(snap.Lots)),
		zap.Int("movements", len(snap.Movements)),
		zap.Duration("elapsed", time.Since(start)))
	return d, nil
}

// loadSnapshot reads the catalog, every lot, the orders and the ledger from
// window.From onwards. Older entries only matter while they are still pending
// or errored, so those are read separately.
func (s *DashboardService) loadSnapshot(ctx context.Context, window shared.TimeWindow) (report.Snapshot, error) {
	var snap report.Snapshot
	var err error

	if snap.Medications, err = collect(ctx, s.medications.FindAll); err != nil {
		return snap, err
	}
	if snap.Lots, err = collect(ctx, s.lots.FindAll); err != nil {
		return snap, err
	}
	if snap.Orders, err = collect(ctx, s.orders.FindAll); err != nil {
		return snap, err
	}

	from := window.From
	if snap.Movements, err = s.ledger(ctx, inventory.MovementFilter{From: &from}); err != nil {
		return snap, err
	}
	before := window.From.Add(-time.Nanosecond)
	for _, st := range []inventory.MovementStatus{inventory.MovementStatusPending, inventory.MovementStatusError} {
		status := st
		older, err := s.ledger(ctx, inventory.MovementFilter{Status: &status, To: &before})
		if err != nil {
			return snap, err
		}
		snap.Movements = append(snap.Movements, older...)
	}
	return snap, nil
}

func (s *DashboardService) ledger(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	var cursor *inventory.MovementCursor
	for {
		page, err := s.movements.FindPage(ctx, filter, cursor, snapshotPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < snapshotPageSize {
			return out, nil
		}
		last := page[len(page)-1]
		cursor = &inventory.MovementCursor{RecordedAt: last.RecordedAt, ID: last.ID}
	}
}

// collect pages through a FindAll-style query until it is exhausted
func collect[T any](ctx context.Context, find func(context.Context, shared.Filter) ([]T, int64, error)) ([]T, error) {
	filter := shared.DefaultFilter()
	filter.PageSize = snapshotPageSize
	filter.OrderBy = "id"
	filter.OrderDir = "asc"

	var out []T
	for {
		items, total, err := find(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < filter.PageSize || int64(len(out)) >= total {
			return out, nil
		}
		filter.Page++
	}
}
