package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bav-systems/visitas-api/internal/models"
	"github.com/bav-systems/visitas-api/internal/service"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
	"github.com/bav-systems/visitas-api/pkg/response"
)

// VisitorHandler wires HTTP endpoints to the visitor service.
type VisitorHandler struct {
	service *service.VisitorService
}

// NewVisitorHandler creates a new handler.
func NewVisitorHandler(svc *service.VisitorService) *VisitorHandler {
	return &VisitorHandler{service: svc}
}

// CheckIn godoc
// @Summary Register a visitor entry
// @Tags Visitors
// @Accept json
// @Produce json
// @Param payload body models.CheckInRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visitors/check-in [post]
func (h *VisitorHandler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}

	detail, err := h.service.CheckIn(c.Request.Context(), actorID(c), originIP(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, detail)
}

// CheckOut godoc
// @Summary Register a visitor exit
// @Tags Visitors
// @Produce json
// @Param cedula path string true "Visitor cédula"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visitors/check-out/{cedula} [post]
func (h *VisitorHandler) CheckOut(c *gin.Context) {
	if err := h.service.CheckOut(c.Request.Context(), actorID(c), originIP(c), c.Param("cedula")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Update godoc
// @Summary Edit visitor data
// @Tags Visitors
// @Accept json
// @Produce json
// @Param id path string true "Visitor id"
// @Param payload body models.CheckInRequest true "Visitor payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visitors/{id} [put]
func (h *VisitorHandler) Update(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid visitor payload"))
		return
	}

	visitor, err := h.service.Update(c.Request.Context(), actorID(c), originIP(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, visitor, nil)
}

// Delete godoc
// @Summary Delete a visitor and its visit history
// @Tags Visitors
// @Produce json
// @Param id path string true "Visitor id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visitors/{id} [delete]
func (h *VisitorHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorID(c), originIP(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary Visitor directory
// @Tags Visitors
// @Produce json
// @Param search query string false "Name or cédula search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /visitors [get]
func (h *VisitorHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	visitors, total, err := h.service.List(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, visitors, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Visits godoc
// @Summary Visit reports
// @Tags Visitors
// @Produce json
// @Param date_from query string false "Start date (RFC 3339)"
// @Param date_to query string false "End date (RFC 3339)"
// @Param search query string false "Name, cédula or host search"
// @Success 200 {object} response.Envelope
// @Router /visits [get]
func (h *VisitorHandler) Visits(c *gin.Context) {
	filter := models.VisitFilter{Search: c.Query("search")}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if raw := c.Query("date_from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateFrom = &ts
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateTo = &ts
		}
	}

	visits, total, err := h.service.ListVisits(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, visits, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// Active godoc
// @Summary Visitors currently inside
// @Tags Visitors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /visits/active [get]
func (h *VisitorHandler) Active(c *gin.Context) {
	visits, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visits, nil)
}
