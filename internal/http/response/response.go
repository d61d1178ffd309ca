package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr derives status and code from the error kind. Internal details
// never reach the body.
func RespondErr(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	if kind == errs.KindInternal || kind == errs.KindPersistence {
		_ = c.Error(err)
	}
	c.JSON(StatusFor(kind), ErrorEnvelope{
		Error: APIError{
			Message: errs.Public(err),
			Code:    string(kind),
		},
	})
}

func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindProtocol:
		return http.StatusBadRequest
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindPersistence, errs.KindTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
