package report

import (
	"slices"
	"time"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/purchasing"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultExpiryWarningDays is used when Options.ExpiryWarningDays is not set
const DefaultExpiryWarningDays = 90

// Snapshot is the data the dashboard reduces over
type Snapshot struct {
	Medications []inventory.Medication
	Lots        []inventory.Lot
	Movements   []inventory.StockMovement
	Orders      []purchasing.SupplierOrder
}

// Options tunes the reducer
type Options struct {
	Now               time.Time
	ExpiryWarningDays int
}

// StoreFigures are stock totals for one store
type StoreFigures struct {
	Store    inventory.Store `json:"store"`
	LotCount int             `json:"lot_count"`
	Units    decimal.Decimal `json:"units"`
	Value    decimal.Decimal `json:"value"`
}

// Totals summarize what is on the shelves
type Totals struct {
	Medications int             `json:"medications"`
	Lots        int             `json:"lots"`
	ActiveLots  int             `json:"active_lots"`
	Units       decimal.Decimal `json:"units"`
	Value       decimal.Decimal `json:"value"`
	ByStore     []StoreFigures  `json:"by_store"`
}

// MedicationAlert names a medication crossing a threshold
type MedicationAlert struct {
	MedicationID uuid.UUID       `json:"medication_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	OnHand       decimal.Decimal `json:"on_hand"`
	Threshold    decimal.Decimal `json:"threshold"`
}

// LotAlert names a lot that is expired or about to be
type LotAlert struct {
	LotID        uuid.UUID       `json:"lot_id"`
	MedicationID uuid.UUID       `json:"medication_id"`
	LotNumber    string          `json:"lot_number"`
	Store        inventory.Store `json:"store"`
	Remaining    decimal.Decimal `json:"remaining"`
	ExpiryDate   time.Time       `json:"expiry_date"`
}

// Alerts groups everything that needs a pharmacist's attention
type Alerts struct {
	ExpiredLots       []LotAlert        `json:"expired_lots"`
	ExpiringLots      []LotAlert        `json:"expiring_lots"`
	BelowReorder      []MedicationAlert `json:"below_reorder"`
	StockOut          []MedicationAlert `json:"stock_out"`
	ExpiredCount      int               `json:"expired_count"`
	ExpiringCount     int               `json:"expiring_count"`
	BelowReorderCount int               `json:"below_reorder_count"`
	StockOutCount     int               `json:"stock_out_count"`
}

// MovementFigures count ledger activity inside the window
type MovementFigures struct {
	Entries       int                            `json:"entries"`
	Exits         int                            `json:"exits"`
	Transfers     int                            `json:"transfers"`
	EntryUnits    decimal.Decimal                `json:"entry_units"`
	ExitUnits     decimal.Decimal                `json:"exit_units"`
	TransferUnits decimal.Decimal                `json:"transfer_units"`
	ByType        map[inventory.MovementType]int `json:"by_type"`
	Pending       int                            `json:"pending"`
	Errored       int                            `json:"errored"`
}

// OrderFigures summarize the supplier order pipeline
type OrderFigures struct {
	ByStatus  map[purchasing.OrderStatus]int `json:"by_status"`
	OpenCount int                            `json:"open_count"`
	OpenValue decimal.Decimal                `json:"open_value"`
}

// Dashboard is the KPI read model
type Dashboard struct {
	Window       shared.TimeWindow `json:"window"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Totals       Totals            `json:"totals"`
	Alerts       Alerts            `json:"alerts"`
	Movements    MovementFigures   `json:"movements"`
	Orders       OrderFigures      `json:"orders"`
	RotationRate decimal.Decimal   `json:"rotation_rate"`
}

// ComputeDashboard reduces snap into KPIs for window. It has no side effects
// and only fails on an invalid window.
func ComputeDashboard(snap Snapshot, window shared.TimeWindow, opts Options) (*Dashboard, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	warnDays := opts.ExpiryWarningDays
	if warnDays <= 0 {
		warnDays = DefaultExpiryWarningDays
	}

	d := &Dashboard{
		Window:      window,
		GeneratedAt: now,
		Totals:      computeTotals(snap, now),
		Alerts:      computeAlerts(snap, now, warnDays),
		Movements:   computeMovements(snap.Movements, window),
		Orders:      computeOrders(snap.Orders),
	}
	d.RotationRate = rotationRate(snap.Movements, d.Totals.Units, window)
	return d, nil
}

func computeTotals(snap Snapshot, now time.Time) Totals {
	t := Totals{Units: decimal.Zero, Value: decimal.Zero}
	for _, m := range snap.Medications {
		if !m.IsArchived() {
			t.Medications++
		}
	}

	byStore := make(map[inventory.Store]*StoreFigures)
	for _, s := range inventory.AllStores() {
		byStore[s] = &StoreFigures{Store: s, Units: decimal.Zero, Value: decimal.Zero}
	}
	for _, l := range snap.Lots {
		t.Lots++
		if l.QuantityAvailable.IsPositive() && !l.IsExpired(now) {
			t.ActiveLots++
		}
		fig, ok := byStore[l.Store]
		if !ok {
			continue
		}
		fig.LotCount++
		fig.Units = fig.Units.Add(l.QuantityAvailable)
		fig.Value = fig.Value.Add(l.Value())
		t.Units = t.Units.Add(l.QuantityAvailable)
		t.Value = t.Value.Add(l.Value())
	}
	for _, s := range inventory.AllStores() {
		t.ByStore = append(t.ByStore, *byStore[s])
	}
	return t
}

func computeAlerts(snap Snapshot, now time.Time, warnDays int) Alerts {
	a := Alerts{
		ExpiredLots:  []LotAlert{},
		ExpiringLots: []LotAlert{},
		BelowReorder: []MedicationAlert{},
		StockOut:     []MedicationAlert{},
	}
	onHand := make(map[uuid.UUID]decimal.Decimal)
	for _, l := range snap.Lots {
		if !l.QuantityAvailable.IsPositive() {
			continue
		}
		alert := LotAlert{
			LotID:        l.ID,
			MedicationID: l.MedicationID,
			LotNumber:    l.LotNumber,
			Store:        l.Store,
			Remaining:    l.QuantityAvailable,
			ExpiryDate:   l.ExpiryDate,
		}
		switch {
		case l.IsExpired(now):
			a.ExpiredLots = append(a.ExpiredLots, alert)
			continue
		case l.ExpiresWithin(now, warnDays):
			a.ExpiringLots = append(a.ExpiringLots, alert)
		}
		onHand[l.MedicationID] = onHand[l.MedicationID].Add(l.QuantityAvailable)
	}

	for _, m := range snap.Medications {
		if m.IsArchived() {
			continue
		}
		qty := onHand[m.ID]
		switch {
		case m.IsStockOut(qty):
			a.StockOut = append(a.StockOut, medicationAlert(m, qty, m.StockoutThreshold))
		case m.IsBelowReorder(qty):
			a.BelowReorder = append(a.BelowReorder, medicationAlert(m, qty, m.ReorderThreshold))
		}
	}

	byExpiry := func(x, y LotAlert) int { return x.ExpiryDate.Compare(y.ExpiryDate) }
	slices.SortFunc(a.ExpiredLots, byExpiry)
	slices.SortFunc(a.ExpiringLots, byExpiry)

	a.ExpiredCount = len(a.ExpiredLots)
	a.ExpiringCount = len(a.ExpiringLots)
	a.BelowReorderCount = len(a.BelowReorder)
	a.StockOutCount = len(a.StockOut)
	return a
}

func medicationAlert(m inventory.Medication, onHand, threshold decimal.Decimal) MedicationAlert {
	return MedicationAlert{
		MedicationID: m.ID,
		Code:         m.Code,
		Name:         m.Name,
		OnHand:       onHand,
		Threshold:    threshold,
	}
}

func computeMovements(movements []inventory.StockMovement, window shared.TimeWindow) MovementFigures {
	f := MovementFigures{
		EntryUnits:    decimal.Zero,
		ExitUnits:     decimal.Zero,
		TransferUnits: decimal.Zero,
		ByType:        make(map[inventory.MovementType]int),
	}
	for _, t := range inventory.AllMovementTypes() {
		f.ByType[t] = 0
	}
	for _, m := range movements {
		switch m.Status {
		case inventory.MovementStatusPending:
			f.Pending++
		case inventory.MovementStatusError:
			f.Errored++
		}
		if !window.Contains(m.RecordedAt) || m.Status == inventory.MovementStatusError {
			continue
		}
		f.ByType[m.Type]++
		switch {
		case m.Type.IsIncrease():
			f.Entries++
			f.EntryUnits = f.EntryUnits.Add(m.Quantity)
		case m.Type.IsDecrease():
			f.Exits++
			f.ExitUnits = f.ExitUnits.Add(m.Quantity)
		case m.Type == inventory.MovementTypeTransfer:
			f.Transfers++
			f.TransferUnits = f.TransferUnits.Add(m.Quantity)
		}
	}
	return f
}

func computeOrders(orders []purchasing.SupplierOrder) OrderFigures {
	f := OrderFigures{
		ByStatus:  make(map[purchasing.OrderStatus]int),
		OpenValue: decimal.Zero,
	}
	for _, s := range purchasing.AllOrderStatuses() {
		f.ByStatus[s] = 0
	}
	for i := range orders {
		o := &orders[i]
		f.ByStatus[o.Status]++
		if o.Status != purchasing.OrderStatusReceived {
			f.OpenCount++
			f.OpenValue = f.OpenValue.Add(purchasing.ComputeOrderTotal(o))
		}
	}
	return f
}

// rotationRate is units leaving the stores during the window over the
// average units on hand, where on-hand at a past instant is rebuilt by
// undoing the net ledger change recorded after it.
func rotationRate(movements []inventory.StockMovement, current decimal.Decimal, window shared.TimeWindow) decimal.Decimal {
	exits := decimal.Zero
	netAfterFrom := decimal.Zero
	netAfterTo := decimal.Zero
	for _, m := range movements {
		if m.Status == inventory.MovementStatusError {
			continue
		}
		delta := decimal.Zero
		switch {
		case m.Type.IsIncrease():
			delta = m.Quantity
		case m.Type.IsDecrease():
			delta = m.Quantity.Neg()
			if window.Contains(m.RecordedAt) {
				exits = exits.Add(m.Quantity)
			}
		}
		if m.RecordedAt.After(window.From) {
			netAfterFrom = netAfterFrom.Add(delta)
		}
		if m.RecordedAt.After(window.To) {
			netAfterTo = netAfterTo.Add(delta)
		}
	}

	start := current.Sub(netAfterFrom)
	end := current.Sub(netAfterTo)
	avg := start.Add(end).Div(decimal.NewFromInt(2))
	if !avg.IsPositive() {
		return decimal.Zero
	}
	return exits.Div(avg).Round(4)
}
