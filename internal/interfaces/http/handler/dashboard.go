package handler

import (
	"time"

	reportapp "github.com/clinic/pharmacy/internal/application/report"
	"github.com/gin-gonic/gin"
)

// defaultDashboardWindow applies when neither from nor to is given
const defaultDashboardWindow = 30 * 24 * time.Hour

// DashboardHandler serves the stock KPIs
type DashboardHandler struct {
	BaseHandler
	dashboard *reportapp.DashboardService
	now       func() time.Time
}

// NewDashboardHandler creates a DashboardHandler
func NewDashboardHandler(dashboard *reportapp.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, now: time.Now}
}

// Get godoc
// @Summary      Stock dashboard
// @Description  KPIs over a window; the last 30 days when neither bound is given
// @Tags         dashboard
// @Produce      json
// @Param        from query string false "Window start (RFC 3339)"
// @Param        to query string false "Window end (RFC 3339)"
// @Param        expiry_warning_days query int false "Days ahead counted as expiring soon" minimum(1) maximum(730)
// @Success      200 {object} dto.Response{data=report.Dashboard}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	var req reportapp.DashboardRequest
	if !h.bindQuery(c, &req) {
		return
	}
	if req.From.IsZero() && req.To.IsZero() {
		req.To = h.now()
		req.From = req.To.Add(-defaultDashboardWindow)
	}
	d, err := h.dashboard.Dashboard(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, d)
}
