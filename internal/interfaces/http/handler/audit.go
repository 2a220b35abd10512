package handler

import (
	"strconv"

	auditapp "github.com/clinic/pharmacy/internal/application/audit"
	"github.com/gin-gonic/gin"
)

// AuditHandler serves the stock audit trail
type AuditHandler struct {
	BaseHandler
	trail *auditapp.TrailService
}

// NewAuditHandler creates an AuditHandler
func NewAuditHandler(trail *auditapp.TrailService) *AuditHandler {
	return &AuditHandler{trail: trail}
}

// History godoc
// @Summary      Audit trail of an entity
// @Description  Newest first
// @Tags         audit
// @Produce      json
// @Param        kind path string true "Entity kind" Enums(medication, lot, movement, supplier-order, stock-count)
// @Param        id path string true "Entity ID" format(uuid)
// @Param        limit query int false "Maximum entries" default(100) maximum(100)
// @Success      200 {object} dto.Response{data=[]auditapp.EntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /audit/{kind}/{id} [get]
func (h *AuditHandler) History(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.trail.History(c.Request.Context(), c.Param("kind"), id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}
