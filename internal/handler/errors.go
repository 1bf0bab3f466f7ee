package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/response"
)

// statusFor maps a service error onto an HTTP status and reason key.
// Unknown errors are internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, response.MsgValidationError
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, response.MsgNotAuthenticated
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.MsgInvalidCredentials
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, response.MsgNotAuthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, response.MsgNotFound
	case errors.Is(err, domain.ErrDuplicateUsername):
		return http.StatusConflict, response.MsgDuplicateUsername
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, response.MsgConflict
	default:
		return http.StatusInternalServerError, response.MsgError
	}
}

// fail writes the error envelope. Internal errors are logged and hidden.
func fail(c *gin.Context, err error, what string) {
	status, msg := statusFor(err)
	l := log.Ctx(c.Request.Context())
	if status == http.StatusInternalServerError {
		l.Error().Err(err).Msg(what + " failed")
	} else {
		l.Debug().Err(err).Int(log.FieldStatus, status).Msg(what + " rejected")
	}
	response.Error(c, status, msg)
}
