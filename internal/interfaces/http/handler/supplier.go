package handler

import (
	purchasingapp "github.com/clinic/pharmacy/internal/application/purchasing"
	"github.com/gin-gonic/gin"
)

// SupplierHandler serves the supplier directory
type SupplierHandler struct {
	BaseHandler
	suppliers *purchasingapp.SupplierService
}

// NewSupplierHandler creates a SupplierHandler
func NewSupplierHandler(suppliers *purchasingapp.SupplierService) *SupplierHandler {
	return &SupplierHandler{suppliers: suppliers}
}

// Create godoc
// @Summary      Create supplier
// @Tags         suppliers
// @Accept       json
// @Produce      json
// @Param        request body purchasingapp.CreateSupplierRequest true "Supplier"
// @Success      201 {object} dto.Response{data=purchasingapp.SupplierResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /suppliers [post]
func (h *SupplierHandler) Create(c *gin.Context) {
	var req purchasingapp.CreateSupplierRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s, err := h.suppliers.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, s)
}

// List godoc
// @Summary      List suppliers
// @Description  Sorted by name with French collation
// @Tags         suppliers
// @Produce      json
// @Param        search query string false "Name fragment"
// @Success      200 {object} dto.Response{data=[]purchasingapp.SupplierResponse}
// @Router       /suppliers [get]
func (h *SupplierHandler) List(c *gin.Context) {
	list, err := h.suppliers.ListSuppliers(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, list)
}

// Get godoc
// @Summary      Get supplier
// @Tags         suppliers
// @Produce      json
// @Param        id path string true "Supplier ID" format(uuid)
// @Success      200 {object} dto.Response{data=purchasingapp.SupplierResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /suppliers/{id} [get]
func (h *SupplierHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.suppliers.GetSupplier(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, s)
}

// Update godoc
// @Summary      Update supplier
// @Tags         suppliers
// @Accept       json
// @Produce      json
// @Param        id path string true "Supplier ID" format(uuid)
// @Param        request body purchasingapp.UpdateSupplierRequest true "Supplier"
// @Success      200 {object} dto.Response{data=purchasingapp.SupplierResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /suppliers/{id} [put]
func (h *SupplierHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req purchasingapp.UpdateSupplierRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s, err := h.suppliers.UpdateSupplier(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, s)
}
