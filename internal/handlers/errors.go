package handlers

import (
	"errors"
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const errInternal = "internal error"

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrAttemptClosed), errors.Is(err, service.ErrAmountMismatch):
		return http.StatusConflict
	case errors.Is(err, service.ErrBadSignature):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrIntegrity):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentProvider):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what the client sees; provider and storage details stay in the log.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrPaymentProvider):
		return service.ErrPaymentProvider.Error()
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrAuth), errors.Is(err, service.ErrIntegrity):
		return err.Error()
	default:
		return errInternal
	}
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	h.logError(httpCode, logKey, err, kv...)
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// serviceJSONError answers a JSON request that failed in the service layer.
func (h *Handler) serviceJSONError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	h.logAndJSONError(c, statusFor(err), publicMessage(err), logKey, err, kv...)
}

// logError logs server-side failures at error level and client mistakes at info level.
func (h *Handler) logError(httpCode int, logKey string, err error, kv ...interface{}) {
	if h.log == nil || err == nil {
		return
	}
	fields := append([]interface{}{"err", err, "status", httpCode}, kv...)
	if httpCode >= http.StatusInternalServerError {
		h.log.Errorw(logKey, fields...)
		return
	}
	h.log.Infow(logKey, fields...)
}
