package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bav-systems/visitas-api/internal/models"
	"github.com/bav-systems/visitas-api/internal/service"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
	"github.com/bav-systems/visitas-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	// A browser that already holds a session never reaches the gate.
	if _, ok := currentClaims(c); ok {
		response.Error(c, appErrors.ErrAlreadyAuthenticated)
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = originIP(c)
	req.Signature = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange refresh token for new access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Refresh token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var payload struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "refresh token required"))
		return
	}

	res, err := h.service.RefreshToken(c.Request.Context(), payload.RefreshToken, originIP(c), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Release the caller's IP slot and revoke the refresh token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body map[string]string false "Refresh token"
// @Success 204 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&payload)

	var user *models.User
	if claims, ok := currentClaims(c); ok {
		user = &models.User{ID: claims.UserID, Username: claims.Username}
	}

	if err := h.service.Logout(c.Request.Context(), originIP(c), payload.RefreshToken, user); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Warn godoc
// @Summary Duplicate-session warning
// @Description Acknowledge the device-busy warning; always logs the caller out
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/warn [post]
func (h *AuthHandler) Warn(c *gin.Context) {
	ip := originIP(c)

	var user *models.User
	if claims, ok := currentClaims(c); ok {
		user = &models.User{ID: claims.UserID, Username: claims.Username}
	}

	if err := h.service.Warn(c.Request.Context(), ip, user); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"ip": ip, "message": "este dispositivo ya tiene una sesión activa"}, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Change password for current user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Change password payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid change password payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims.UserID, originIP(c), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Me godoc
// @Summary Current user
// @Description Return the authenticated user's claims
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, models.UserInfo{
		ID:        claims.UserID,
		Username:  claims.Username,
		Superuser: claims.Superuser,
	}, nil)
}
