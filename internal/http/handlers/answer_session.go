package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/orgdesk-backend/internal/http/response"
	"github.com/yungbote/orgdesk-backend/internal/platform/apierr"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
	"github.com/yungbote/orgdesk-backend/internal/services"
)

type AnswerSessionHandler struct {
	log     *logger.Logger
	answers services.AnswerDiffService
}

func NewAnswerSessionHandler(log *logger.Logger, answers services.AnswerDiffService) *AnswerSessionHandler {
	return &AnswerSessionHandler{log: log.With("handler", "AnswerSessionHandler"), answers: answers}
}

// POST /api/sessions/:id/answers/diff
func (h *AnswerSessionHandler) SaveAnswerDiff(c *gin.Context) {
	var req services.SaveAnswerDiffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Newf(http.StatusBadRequest, response.CodeValidation, "request body must be a JSON object"))
		return
	}
	res, err := h.answers.SaveAnswerDiff(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}
