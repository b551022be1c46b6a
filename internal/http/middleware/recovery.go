package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/orgdesk-backend/internal/http/response"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

// Recovery turns handler panics into an internal_error envelope.
func Recovery(log *logger.Logger, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				m.IncPanic()
				if log != nil {
					log.Error("handler panic",
						"method", c.Request.Method,
						"path", c.Request.URL.Path,
						"panic", fmt.Sprint(r),
					)
				}
				if !c.Writer.Written() {
					response.RespondFailure(c, http.StatusInternalServerError, response.CodeInternal, "internal error")
				} else {
					c.Abort()
				}
			}
		}()
		c.Next()
	}
}
