package handler

import (
	"strconv"

	inventoryapp "github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPendingLimit = 200
	maxPendingLimit     = 5000
)

// StockHandler serves the movement ledger and the reconciler
type StockHandler struct {
	BaseHandler
	ledger     *inventoryapp.LedgerService
	reconciler *inventoryapp.Reconciler
}

// NewStockHandler creates a StockHandler
func NewStockHandler(ledger *inventoryapp.LedgerService, reconciler *inventoryapp.Reconciler) *StockHandler {
	return &StockHandler{ledger: ledger, reconciler: reconciler}
}

// RecordMovement godoc
// @Summary      Record stock movement
// @Description  Lot-referencing movements are applied to the lot in the same transaction; aggregate ones wait for the reconciler
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        request body inventoryapp.RecordMovementRequest true "Movement"
// @Success      201 {object} dto.Response{data=inventoryapp.MovementResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/movements [post]
func (h *StockHandler) RecordMovement(c *gin.Context) {
	var req inventoryapp.RecordMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actor(c, req.ActorID)
	m, err := h.ledger.RecordMovement(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, m)
}

// ListMovements godoc
// @Summary      List stock movements
// @Tags         stock
// @Produce      json
// @Param        medication_id query string false "Medication ID" format(uuid)
// @Param        lot_id query string false "Lot ID" format(uuid)
// @Param        type query string false "Movement type" Enums(reception, dispensation, transfer, return, loss)
// @Param        status query string false "Movement status" Enums(pending, synchronized, error)
// @Param        from query string false "Recorded at or after (RFC 3339)"
// @Param        to query string false "Recorded at or before (RFC 3339)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]inventoryapp.MovementResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/movements [get]
func (h *StockHandler) ListMovements(c *gin.Context) {
	var filter inventoryapp.MovementListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.ledger.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListPending godoc
// @Summary      List pending movements
// @Description  Entries come in ledger order, which is the order the reconciler replays them
// @Tags         stock
// @Produce      json
// @Param        medication_id query string false "Medication ID" format(uuid)
// @Param        limit query int false "Maximum entries" default(200) maximum(5000)
// @Success      200 {object} dto.Response{data=[]inventoryapp.MovementResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/movements/pending [get]
func (h *StockHandler) ListPending(c *gin.Context) {
	var medicationID *uuid.UUID
	if raw := c.Query("medication_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "invalid medication_id: must be a UUID")
			return
		}
		medicationID = &id
	}
	limit := defaultPendingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPendingLimit {
			h.BadRequest(c, "limit must be between 1 and "+strconv.Itoa(maxPendingLimit))
			return
		}
		limit = n
	}

	items := make([]inventoryapp.MovementResponse, 0)
	for m, err := range h.ledger.ListPending(c.Request.Context(), medicationID) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		items = append(items, inventoryapp.ToMovementResponse(&m))
		if len(items) == limit {
			break
		}
	}
	h.Success(c, items)
}

// GetMovement godoc
// @Summary      Get stock movement
// @Tags         stock
// @Produce      json
// @Param        id path string true "Movement ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.MovementResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/movements/{id} [get]
func (h *StockHandler) GetMovement(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	m, err := h.ledger.GetMovement(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// Synchronize godoc
// @Summary      Mark movement synchronized
// @Description  Idempotent. Errored entries and unallocated aggregate entries are refused
// @Tags         stock
// @Produce      json
// @Param        id path string true "Movement ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.MovementResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/movements/{id}/synchronize [post]
func (h *StockHandler) Synchronize(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	m, err := h.ledger.MarkSynchronized(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// Requeue godoc
// @Summary      Requeue errored movement
// @Description  Puts an errored entry back to pending after manual review
// @Tags         stock
// @Produce      json
// @Param        id path string true "Movement ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.MovementResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/movements/{id}/requeue [post]
func (h *StockHandler) Requeue(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	m, err := h.ledger.RequeueMovement(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// ReconcileRequest optionally narrows a reconcile pass to one medication
type ReconcileRequest struct {
	MedicationID *uuid.UUID `json:"medication_id"`
}

// Reconcile godoc
// @Summary      Reconcile stock
// @Description  Failed replays do not fail the request; they are listed under errored
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body ReconcileRequest false "Optional medication"
// @Success      200 {object} dto.Response{data=inventoryapp.ReconcileResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/reconcile [post]
func (h *StockHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	result, err := h.reconciler.Reconcile(c.Request.Context(), req.MedicationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Divergence godoc
// @Summary      Divergence report
// @Description  One synchronization record per medication
// @Tags         stock
// @Produce      json
// @Success      200 {object} dto.Response{data=[]inventoryapp.SyncRecordResponse}
// @Router       /stock/divergence [get]
func (h *StockHandler) Divergence(c *gin.Context) {
	records := make([]inventoryapp.SyncRecordResponse, 0)
	for record, err := range h.reconciler.DivergenceReport(c.Request.Context()) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		records = append(records, inventoryapp.ToSyncRecordResponse(record))
	}
	h.Success(c, records)
}

// SyncRecord godoc
// @Summary      Synchronization record of a medication
// @Tags         stock
// @Produce      json
// @Param        medication_id path string true "Medication ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.SyncRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/sync/{medication_id} [get]
func (h *StockHandler) SyncRecord(c *gin.Context) {
	id, ok := h.pathID(c, "medication_id")
	if !ok {
		return
	}
	record, err := h.reconciler.SyncRecord(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}
