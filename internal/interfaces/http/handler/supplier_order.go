package handler

import (
	purchasingapp "github.com/clinic/pharmacy/internal/application/purchasing"
	"github.com/gin-gonic/gin"
)

// SupplierOrderHandler serves the supplier order workflow
type SupplierOrderHandler struct {
	BaseHandler
	orders *purchasingapp.OrderService
}

// NewSupplierOrderHandler creates a SupplierOrderHandler
func NewSupplierOrderHandler(orders *purchasingapp.OrderService) *SupplierOrderHandler {
	return &SupplierOrderHandler{orders: orders}
}

// Create godoc
// @Summary      Create supplier order
// @Description  Numbered CF-YYYY-NNNNN, created as DRAFT
// @Tags         supplier-orders
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        request body purchasingapp.CreateOrderRequest true "Order"
// @Success      201 {object} dto.Response{data=purchasingapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /supplier-orders [post]
func (h *SupplierOrderHandler) Create(c *gin.Context) {
	var req purchasingapp.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = actor(c, req.CreatedBy)
	order, err := h.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// List godoc
// @Summary      List supplier orders
// @Tags         supplier-orders
// @Produce      json
// @Param        status query string false "Order status" Enums(DRAFT, AWAITING_SIGNATURE, SENT_TO_SUPPLIER, RECEIVED)
// @Param        supplier_id query string false "Supplier ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]purchasingapp.OrderResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /supplier-orders [get]
func (h *SupplierOrderHandler) List(c *gin.Context) {
	var filter purchasingapp.OrderListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @Summary      Get supplier order
// @Tags         supplier-orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=purchasingapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /supplier-orders/{id} [get]
func (h *SupplierOrderHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// AdvanceStatus godoc
// @Summary      Advance supplier order status
// @Description  Moving to RECEIVED needs the receipt lines; the response lists the lots and movements created
// @Tags         supplier-orders
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Order ID" format(uuid)
// @Param        request body purchasingapp.AdvanceStatusRequest true "Target status and receipt"
// @Success      200 {object} dto.Response{data=purchasingapp.AdvanceResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /supplier-orders/{id}/status [post]
func (h *SupplierOrderHandler) AdvanceStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req purchasingapp.AdvanceStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actor(c, req.ActorID)
	result, err := h.orders.AdvanceStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Document godoc
// @Summary      Order document link
// @Description  Time-limited link to the order document archived when the order was sent
// @Tags         supplier-orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.Response{data=purchasingapp.DocumentLink}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /supplier-orders/{id}/document [get]
func (h *SupplierOrderHandler) Document(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.orders.DocumentURL(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}
