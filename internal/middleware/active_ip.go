package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/service"
	"github.com/bav-systems/visitas-api/pkg/clientip"
)

// ActiveIP maintains the per-IP session registry on every request: the
// caller's row is touched first, then stale rows are swept, so the caller
// always survives its own sweep. A registry failure never blocks the request.
func ActiveIP(sessions *service.SessionService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := clientip.FromRequest(c.Request)
		if ip != "" {
			if err := sessions.Touch(c.Request.Context(), ip, c.Request.UserAgent()); err != nil {
				logger.Warn("failed to touch active session", zap.String("ip", ip), zap.Error(err))
			}
		}
		c.Next()
	}
}
