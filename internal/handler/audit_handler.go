package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bav-systems/visitas-api/internal/models"
	"github.com/bav-systems/visitas-api/internal/service"
	"github.com/bav-systems/visitas-api/pkg/response"
)

// AuditHandler wires HTTP endpoints to the bitácora.
type AuditHandler struct {
	audit  *service.AuditService
	export *service.ExportService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(audit *service.AuditService, export *service.ExportService) *AuditHandler {
	return &AuditHandler{audit: audit, export: export}
}

// List godoc
// @Summary List bitácora entries
// @Tags Audit
// @Produce json
// @Param action query string false "Exact action label"
// @Param search query string false "Details or username search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		Action: c.Query("action"),
		Search: c.Query("search"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	entries, total, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// ExportPDF godoc
// @Summary Download the bitácora as PDF
// @Tags Audit
// @Produce application/pdf
// @Success 200 {file} binary
// @Router /audit/export/pdf [get]
func (h *AuditHandler) ExportPDF(c *gin.Context) {
	filename, payload, err := h.export.ExportPDF(c.Request.Context(), actorID(c), originIP(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", payload)
}

// ExportTXT godoc
// @Summary Download the bitácora as plain text
// @Tags Audit
// @Produce text/plain
// @Success 200 {file} binary
// @Router /audit/export/txt [get]
func (h *AuditHandler) ExportTXT(c *gin.Context) {
	filename, payload, err := h.export.ExportTXT(c.Request.Context(), actorID(c), originIP(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "text/plain; charset=utf-8", payload)
}
