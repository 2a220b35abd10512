// Package bootstrap assembles the stock services over one database so the
// server, the stockctl CLI and handler tests share the same wiring.
package bootstrap

import (
	"context"

	appaudit "github.com/clinic/pharmacy/internal/application/audit"
	appinv "github.com/clinic/pharmacy/internal/application/inventory"
	apppurch "github.com/clinic/pharmacy/internal/application/purchasing"
	appreport "github.com/clinic/pharmacy/internal/application/report"
	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/clinic/pharmacy/internal/infrastructure/event"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence"
	"github.com/clinic/pharmacy/internal/infrastructure/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// broadcastBuffer is the per-subscriber backlog of the SSE fan-out
const broadcastBuffer = 64

// Options carries the optional collaborators of NewServices
type Options struct {
	Stock     config.StockConfig
	Guard     appinv.ReconcileGuard  // process-local guard when nil
	Documents apppurch.DocumentStore // in-memory store when nil
	Recorder  appinv.StockRecorder   // metrics, none when nil
	Logger    *zap.Logger
}

// Services holds every application service of the pharmacy
type Services struct {
	DB          *gorm.DB
	Bus         *event.InMemoryEventBus
	Broadcaster *event.Broadcaster

	Medications *appinv.MedicationService
	Ledger      *appinv.LedgerService
	Reconciler  *appinv.Reconciler
	Counts      *appinv.StockCountService
	Suppliers   *apppurch.SupplierService
	Orders      *apppurch.OrderService
	Dashboard   *appreport.DashboardService
	Trail       *appaudit.TrailService
}

// NewServices builds repositories, the event bus and the services over db
func NewServices(db *gorm.DB, opts Options) *Services {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	documents := opts.Documents
	if documents == nil {
		documents = storage.NewMemoryDocumentStore()
	}

	medications := persistence.NewGormMedicationRepository(db)
	lots := persistence.NewGormLotRepository(db)
	movements := persistence.NewGormMovementRepository(db)
	levels := persistence.NewGormStockLevelRepository(db)
	suppliers := persistence.NewGormSupplierRepository(db)
	orders := persistence.NewGormSupplierOrderRepository(db)
	counts := persistence.NewGormStockCountRepository(db)
	audits := persistence.NewGormAuditRepository(db)
	scope := persistence.NewGormTransactionScope(db)

	bus := event.NewInMemoryEventBus(log.Named("events"))
	broadcaster := event.NewBroadcaster(broadcastBuffer, log.Named("sse"))
	bus.Subscribe(apppurch.NewOrderDocumentHandler(orders, suppliers, documents, log.Named("documents")))
	bus.Subscribe(appaudit.NewTrailHandler(audits, log.Named("audit")))
	bus.Subscribe(broadcaster)

	medicationSvc := appinv.NewMedicationService(medications, lots, log.Named("medications"))
	medicationSvc.SetEventPublisher(bus)

	ledger := appinv.NewLedgerService(scope, medications, movements, log.Named("ledger"))
	ledger.SetEventPublisher(bus)

	reconciler := appinv.NewReconciler(scope, medications, lots, movements, levels, opts.Guard, log.Named("reconciler"))
	reconciler.SetEventPublisher(bus)

	if opts.Recorder != nil {
		ledger.SetRecorder(opts.Recorder)
		reconciler.SetRecorder(opts.Recorder)
	}
	if n := opts.Stock.IterationPageSize; n > 0 {
		ledger.SetPageSize(n)
		reconciler.SetPageSize(n)
	}

	countSvc := appinv.NewStockCountService(counts, lots, movements, ledger, log.Named("counts"))
	countSvc.SetEventPublisher(bus)

	orderSvc := apppurch.NewOrderService(orders, suppliers, medications, scope.ReceivingScope(), log.Named("orders"))
	orderSvc.SetEventPublisher(bus)
	orderSvc.SetDocumentStore(documents, opts.Stock.DocumentLinkTTL)
	if n := opts.Stock.OrderNumberRetries; n > 0 {
		orderSvc.SetNumberAttempts(n)
	}

	dashboard := appreport.NewDashboardService(medications, lots, movements, orders, log.Named("dashboard"))
	if d := opts.Stock.ExpiryWarningDays; d > 0 {
		dashboard.SetExpiryWarningDays(d)
	}

	return &Services{
		DB:          db,
		Bus:         bus,
		Broadcaster: broadcaster,
		Medications: medicationSvc,
		Ledger:      ledger,
		Reconciler:  reconciler,
		Counts:      countSvc,
		Suppliers:   apppurch.NewSupplierService(suppliers, log.Named("suppliers")),
		Orders:      orderSvc,
		Dashboard:   dashboard,
		Trail:       appaudit.NewTrailService(audits),
	}
}

// Start begins event delivery
func (s *Services) Start(ctx context.Context) error {
	return s.Bus.Start(ctx)
}

// Stop halts event delivery
func (s *Services) Stop(ctx context.Context) error {
	return s.Bus.Stop(ctx)
}
