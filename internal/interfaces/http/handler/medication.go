package handler

import (
	"errors"
	"net/http"

	inventoryapp "github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/clinic/pharmacy/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// MedicationHandler serves the medication catalog and its lots
type MedicationHandler struct {
	BaseHandler
	medications *inventoryapp.MedicationService
}

// NewMedicationHandler creates a MedicationHandler
func NewMedicationHandler(medications *inventoryapp.MedicationService) *MedicationHandler {
	return &MedicationHandler{medications: medications}
}

// Create godoc
// @Summary      Create medication
// @Description  A blank code is generated as MED-NNNNN
// @Tags         medications
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.CreateMedicationRequest true "Catalog entry"
// @Success      201 {object} dto.Response{data=inventoryapp.MedicationResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /medications [post]
func (h *MedicationHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateMedicationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	med, err := h.medications.CreateMedication(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, med)
}

// List godoc
// @Summary      List medications
// @Tags         medications
// @Produce      json
// @Param        search query string false "Code or name fragment"
// @Param        category query string false "Category"
// @Param        include_archived query bool false "Include archived entries"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "asc or desc"
// @Success      200 {object} dto.Response{data=[]inventoryapp.MedicationResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /medications [get]
func (h *MedicationHandler) List(c *gin.Context) {
	var filter inventoryapp.MedicationListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	page, err := h.medications.ListMedications(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
// @Summary      Get medication
// @Tags         medications
// @Produce      json
// @Param        id path string true "Medication ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.MedicationResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /medications/{id} [get]
func (h *MedicationHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	med, err := h.medications.GetMedication(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, med)
}

// Update godoc
// @Summary      Update medication
// @Tags         medications
// @Accept       json
// @Produce      json
// @Param        id path string true "Medication ID" format(uuid)
// @Param        request body inventoryapp.UpdateMedicationRequest true "Editable fields and current version"
// @Success      200 {object} dto.Response{data=inventoryapp.MedicationResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /medications/{id} [put]
func (h *MedicationHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.UpdateMedicationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	med, err := h.medications.UpdateMedication(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, med)
}

// Archive godoc
// @Summary      Archive medication
// @Tags         medications
// @Produce      json
// @Param        id path string true "Medication ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.MedicationResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /medications/{id}/archive [post]
func (h *MedicationHandler) Archive(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	med, err := h.medications.ArchiveMedication(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, med)
}

// ListLots godoc
// @Summary      List lots of a medication
// @Tags         medications
// @Produce      json
// @Param        id path string true "Medication ID" format(uuid)
// @Param        store query string false "wholesale or retail"
// @Success      200 {object} dto.Response{data=[]inventoryapp.LotResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /medications/{id}/lots [get]
func (h *MedicationHandler) ListLots(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var store *string
	if s, ok := c.GetQuery("store"); ok && s != "" {
		store = &s
	}
	lots, err := h.medications.ListLots(c.Request.Context(), id, store)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lots)
}

// Import godoc
// @Summary      Import medications from CSV
// @Description  Columns code, name, dosage_form, strength, category, reorder_threshold, stockout_threshold; only name is required. Comma or semicolon separated, UTF-8.
// @Tags         medications
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "CSV file"
// @Param        conflict_mode formData string false "What to do with existing codes" Enums(skip, update, fail)
// @Success      200 {object} dto.Response{data=inventoryapp.MedicationImportResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /medications/import [post]
func (h *MedicationHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, dto.ErrCodeRequestTooLarge, "CSV file exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	mode, err := inventoryapp.ParseConflictMode(c.PostForm("conflict_mode"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := h.medications.ImportMedications(c.Request.Context(), file, mode)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
