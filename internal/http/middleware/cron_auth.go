package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/orgdesk-backend/internal/http/response"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

// CronAuthMiddleware guards the internal cron trigger with the shared
// CRON_SECRET. User tokens are not accepted.
type CronAuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewCronAuthMiddleware(log *logger.Logger, secret string) *CronAuthMiddleware {
	return &CronAuthMiddleware{
		log:    log.With("middleware", "CronAuthMiddleware"),
		secret: []byte(strings.TrimSpace(secret)),
	}
}

// RequireCronSecret rejects every request when no secret is configured.
func (m *CronAuthMiddleware) RequireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(m.secret) == 0 {
			response.RespondFailure(c, http.StatusForbidden, response.CodeForbidden, "cron trigger is disabled")
			return
		}
		token := extractBearerToken(c)
		if token == "" {
			response.RespondFailure(c, http.StatusUnauthorized, response.CodeAuthRequired, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), m.secret) != 1 {
			m.log.Warn("cron trigger rejected", "client_ip", c.ClientIP())
			response.RespondFailure(c, http.StatusForbidden, response.CodeForbidden, "invalid cron secret")
			return
		}
		c.Next()
	}
}
