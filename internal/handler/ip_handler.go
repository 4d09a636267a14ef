package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bav-systems/visitas-api/internal/models"
	"github.com/bav-systems/visitas-api/internal/service"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
	"github.com/bav-systems/visitas-api/pkg/response"
)

// IPHandler manages the allow/deny table and the active-device listing.
type IPHandler struct {
	policy   *service.IPPolicyService
	sessions *service.SessionService
}

// NewIPHandler creates a new handler.
func NewIPHandler(policy *service.IPPolicyService, sessions *service.SessionService) *IPHandler {
	return &IPHandler{policy: policy, sessions: sessions}
}

// List godoc
// @Summary List IP policy rows
// @Tags IPControl
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ips [get]
func (h *IPHandler) List(c *gin.Context) {
	entries, err := h.policy.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Upsert godoc
// @Summary Create or overwrite an IP policy row
// @Tags IPControl
// @Accept json
// @Produce json
// @Param payload body models.UpsertIPPolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ips [put]
func (h *IPHandler) Upsert(c *gin.Context) {
	var req models.UpsertIPPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ip policy payload"))
		return
	}

	entry, err := h.policy.Upsert(c.Request.Context(), actorID(c), originIP(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entry, nil)
}

// SetAllowed godoc
// @Summary Toggle an address's allowed flag
// @Tags IPControl
// @Accept json
// @Produce json
// @Param address path string true "IP address"
// @Param payload body map[string]bool true "Allowed flag"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ips/{address} [patch]
func (h *IPHandler) SetAllowed(c *gin.Context) {
	var payload struct {
		Allowed *bool `json:"allowed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "allowed flag required"))
		return
	}

	if err := h.policy.SetAllowed(c.Request.Context(), actorID(c), originIP(c), c.Param("address"), *payload.Allowed); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Delete godoc
// @Summary Remove an IP policy row
// @Tags IPControl
// @Produce json
// @Param address path string true "IP address"
// @Success 204 {object} response.Envelope
// @Router /ips/{address} [delete]
func (h *IPHandler) Delete(c *gin.Context) {
	if err := h.policy.Delete(c.Request.Context(), actorID(c), originIP(c), c.Param("address")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ActiveDevices godoc
// @Summary Devices currently holding a session slot
// @Tags IPControl
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ips/active [get]
func (h *IPHandler) ActiveDevices(c *gin.Context) {
	sessions, err := h.sessions.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}
