package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/orgdesk-backend/internal/http/response"
	"github.com/yungbote/orgdesk-backend/internal/jobs/cron"
	"github.com/yungbote/orgdesk-backend/internal/platform/apierr"
	"github.com/yungbote/orgdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type CronRunner interface {
	RunOnce(ctx context.Context) (*cron.Report, error)
}

type CronHandler struct {
	log    *logger.Logger
	runner CronRunner
}

func NewCronHandler(log *logger.Logger, runner CronRunner) *CronHandler {
	return &CronHandler{log: log.With("handler", "CronHandler"), runner: runner}
}

// POST /api/internal/cron/run
//
// The run outlives the request: a client that hangs up does not cut the
// budget short.
func (h *CronHandler) Run(c *gin.Context) {
	ctx := ctxutil.Detach(c.Request.Context())
	report, err := h.runner.RunOnce(ctx)
	if errors.Is(err, cron.ErrRunInProgress) {
		response.RespondError(c, apierr.New(http.StatusConflict, response.CodeConflict, err))
		return
	}
	if err != nil {
		response.RespondError(c, err)
		return
	}
	h.log.Info("cron run triggered", "caller_id", ctxutil.CallerID(c.Request.Context()), "status", report.Status)
	response.RespondOK(c, report)
}
