package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/orgdesk-backend/internal/http/response"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler { return &HealthHandler{db: db} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db == nil {
		response.RespondFailure(c, http.StatusServiceUnavailable, "not_ready", "database not configured")
		return
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		response.RespondFailure(c, http.StatusServiceUnavailable, "not_ready", "database unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = c.Error(err)
		response.RespondFailure(c, http.StatusServiceUnavailable, "not_ready", "database unavailable")
		return
	}
	c.String(http.StatusOK, "ok")
}
