package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/platform/apierr"
)

// Wire codes.
const (
	CodeValidation         = "validation_error"
	CodeAuthRequired       = "authentication_required"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeReadOnly           = "readonly_session"
	CodeConflict           = "conflict"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeInvalidCredentials = "invalid_credentials"
	CodeDatabase           = "database_error"
	CodeInternal           = "internal_error"
)

// Failure is the envelope for every error response.
type Failure struct {
	Success bool                    `json:"success"`
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Latest  *questionnaire.Snapshot `json:"latest,omitempty"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondFailure(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Failure{Success: false, Code: code, Message: message})
}

// RespondError classifies err and writes the failure envelope. The error is
// attached to the gin context for the request logger.
func RespondError(c *gin.Context, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	_ = c.Error(err)
	status, body := Classify(err)
	c.AbortWithStatusJSON(status, body)
}

// Classify maps an error to its HTTP status and envelope. Database and
// internal failures get a fixed message.
func Classify(err error) (int, Failure) {
	if conflict, ok := domainagg.AsConflict(err); ok {
		latest := conflict.Latest
		return http.StatusConflict, Failure{
			Code:    CodeConflict,
			Message: "the session was changed by someone else; reload and retry",
			Latest:  &latest,
		}
	}
	if apiErr, ok := apierr.As(err); ok {
		status := apiErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := apiErr.Code
		if code == "" {
			code = CodeValidation
		}
		msg := apiErr.Error()
		if status >= 500 {
			msg = "internal error"
		}
		return status, Failure{Code: code, Message: msg}
	}

	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) {
		return http.StatusInternalServerError, Failure{Code: CodeInternal, Message: "internal error"}
	}
	switch aggErr.Code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest, Failure{Code: CodeValidation, Message: messageOr(aggErr, "invalid request")}
	case domainagg.CodeUnauthenticated:
		return http.StatusUnauthorized, Failure{Code: CodeAuthRequired, Message: "authentication required"}
	case domainagg.CodeForbidden:
		return http.StatusForbidden, Failure{Code: CodeForbidden, Message: "you do not have access to this session"}
	case domainagg.CodeNotFound:
		return http.StatusNotFound, Failure{Code: CodeNotFound, Message: "session not found"}
	case domainagg.CodeReadOnly:
		return http.StatusBadRequest, Failure{Code: CodeReadOnly, Message: "session is completed and can no longer be edited"}
	case domainagg.CodeConflict:
		return http.StatusConflict, Failure{Code: CodeConflict, Message: "the session was changed by someone else; reload and retry"}
	case domainagg.CodeDatabase, domainagg.CodeRetryable, domainagg.CodePreconditionFailed:
		return http.StatusInternalServerError, Failure{Code: CodeDatabase, Message: "database error"}
	default:
		return http.StatusInternalServerError, Failure{Code: CodeInternal, Message: "internal error"}
	}
}

func messageOr(e *domainagg.Error, def string) string {
	if e.Message != "" {
		return e.Message
	}
	return def
}
