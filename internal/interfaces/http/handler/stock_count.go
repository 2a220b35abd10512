package handler

import (
	inventoryapp "github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// StockCountHandler serves physical stock counts
type StockCountHandler struct {
	BaseHandler
	counts *inventoryapp.StockCountService
}

// NewStockCountHandler creates a StockCountHandler
func NewStockCountHandler(counts *inventoryapp.StockCountService) *StockCountHandler {
	return &StockCountHandler{counts: counts}
}

// Open godoc
// @Summary      Open stock count
// @Description  Snapshot the active lots of a store into a new INV-YYYY-NNN count
// @Tags         stock-counts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        request body inventoryapp.OpenCountRequest true "Store to count"
// @Success      201 {object} dto.Response{data=inventoryapp.CountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock-counts [post]
func (h *StockCountHandler) Open(c *gin.Context) {
	var req inventoryapp.OpenCountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actor(c, req.ActorID)
	count, err := h.counts.OpenCount(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, count)
}

// List godoc
// @Summary      List stock counts
// @Tags         stock-counts
// @Produce      json
// @Param        store query string false "wholesale or retail"
// @Param        status query string false "COUNTING, VALIDATING, VALIDATED or CANCELLED"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]inventoryapp.CountResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock-counts [get]
func (h *StockCountHandler) List(c *gin.Context) {
	var filter inventoryapp.CountListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.counts.ListCounts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @Summary      Get stock count
// @Description  A count with its per-lot expected and counted quantities
// @Tags         stock-counts
// @Produce      json
// @Param        id path string true "Count ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.CountResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock-counts/{id} [get]
func (h *StockCountHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	count, err := h.counts.GetCount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// RecordCounts godoc
// @Summary      Record counted quantities
// @Tags         stock-counts
// @Accept       json
// @Produce      json
// @Param        id path string true "Count ID" format(uuid)
// @Param        request body inventoryapp.RecordCountsRequest true "Counted lots"
// @Success      200 {object} dto.Response{data=inventoryapp.CountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock-counts/{id}/counts [post]
func (h *StockCountHandler) RecordCounts(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RecordCountsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	count, err := h.counts.RecordCounts(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}

// Validate godoc
// @Summary      Validate stock count
// @Description  Record a loss for each shortfall and a return for each surplus, then close the count
// @Tags         stock-counts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Count ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.CountValidationResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock-counts/{id}/validate [post]
func (h *StockCountHandler) Validate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ValidateCountRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actor(c, req.ActorID)
	result, err := h.counts.ValidateCount(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel godoc
// @Summary      Cancel stock count
// @Tags         stock-counts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Count ID" format(uuid)
// @Param        request body inventoryapp.CancelCountRequest true "Cancel reason"
// @Success      200 {object} dto.Response{data=inventoryapp.CountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock-counts/{id}/cancel [post]
func (h *StockCountHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CancelCountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actor(c, req.ActorID)
	count, err := h.counts.CancelCount(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, count)
}
