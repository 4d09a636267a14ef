package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bav-systems/visitas-api/internal/middleware"
	"github.com/bav-systems/visitas-api/internal/models"
	"github.com/bav-systems/visitas-api/pkg/clientip"
)

func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}

// actorID returns the authenticated user's id for audit attribution, or nil.
func actorID(c *gin.Context) *string {
	claims, ok := currentClaims(c)
	if !ok {
		return nil
	}
	return &claims.UserID
}

// originIP resolves the caller's address: first forwarded-for entry when
// present, else the direct peer.
func originIP(c *gin.Context) string {
	return clientip.FromRequest(c.Request)
}
