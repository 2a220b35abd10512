package router

import (
	"github.com/clinic/pharmacy/internal/interfaces/http/handler"
)

// Handlers are the API handlers served under /api/v1. Nil handlers leave
// their routes out.
type Handlers struct {
	Health      *handler.HealthHandler
	Medications *handler.MedicationHandler
	Stock       *handler.StockHandler
	StockEvents *handler.StockEventsHandler
	Counts      *handler.StockCountHandler
	Suppliers   *handler.SupplierHandler
	Orders      *handler.SupplierOrderHandler
	Dashboard   *handler.DashboardHandler
	Audit       *handler.AuditHandler
}

// Groups returns the route groups of every configured handler
func (h Handlers) Groups() []RouteRegistrar {
	var groups []RouteRegistrar

	if h.Health != nil {
		groups = append(groups, NewDomainGroup("health", "").
			GET("/health", h.Health.Health))
	}
	if h.Medications != nil {
		groups = append(groups, NewDomainGroup("medications", "/medications").
			POST("", h.Medications.Create).
			GET("", h.Medications.List).
			POST("/import", h.Medications.Import).
			GET("/:id", h.Medications.Get).
			PUT("/:id", h.Medications.Update).
			POST("/:id/archive", h.Medications.Archive).
			GET("/:id/lots", h.Medications.ListLots))
	}

	stock := NewDomainGroup("stock", "/stock")
	if h.Stock != nil {
		stock.
			POST("/movements", h.Stock.RecordMovement).
			GET("/movements", h.Stock.ListMovements).
			GET("/movements/pending", h.Stock.ListPending).
			GET("/movements/:id", h.Stock.GetMovement).
			POST("/movements/:id/synchronize", h.Stock.Synchronize).
			POST("/movements/:id/requeue", h.Stock.Requeue).
			POST("/reconcile", h.Stock.Reconcile).
			GET("/divergence", h.Stock.Divergence).
			GET("/sync/:medication_id", h.Stock.SyncRecord)
	}
	if h.StockEvents != nil {
		stock.GET("/events", h.StockEvents.Stream)
	}
	if len(stock.routes) > 0 {
		groups = append(groups, stock)
	}

	if h.Counts != nil {
		groups = append(groups, NewDomainGroup("stock-counts", "/stock-counts").
			POST("", h.Counts.Open).
			GET("", h.Counts.List).
			GET("/:id", h.Counts.Get).
			POST("/:id/counts", h.Counts.RecordCounts).
			POST("/:id/validate", h.Counts.Validate).
			POST("/:id/cancel", h.Counts.Cancel))
	}
	if h.Suppliers != nil {
		groups = append(groups, NewDomainGroup("suppliers", "/suppliers").
			POST("", h.Suppliers.Create).
			GET("", h.Suppliers.List).
			GET("/:id", h.Suppliers.Get).
			PUT("/:id", h.Suppliers.Update))
	}
	if h.Orders != nil {
		groups = append(groups, NewDomainGroup("supplier-orders", "/supplier-orders").
			POST("", h.Orders.Create).
			GET("", h.Orders.List).
			GET("/:id", h.Orders.Get).
			POST("/:id/status", h.Orders.AdvanceStatus).
			GET("/:id/document", h.Orders.Document))
	}
	if h.Dashboard != nil {
		groups = append(groups, NewDomainGroup("dashboard", "/dashboard").
			GET("", h.Dashboard.Get))
	}
	if h.Audit != nil {
		groups = append(groups, NewDomainGroup("audit", "/audit").
			GET("/:kind/:id", h.Audit.History))
	}
	return groups
}
