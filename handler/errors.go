package handler

import (
	"errors"
	"net/http"

	"github.com/CharlyTlelo/abc-exprezo-contratos/middleware"
	"github.com/CharlyTlelo/abc-exprezo-contratos/pkg/logger"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidFormat, http.StatusBadRequest},
	{service.ErrInvalidSection, http.StatusBadRequest},
	{service.ErrInvalidFolio, http.StatusBadRequest},
	{service.ErrMissingReason, http.StatusBadRequest},
	{service.ErrInvalidDecision, http.StatusBadRequest},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrDuplicateFolio, http.StatusConflict},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrImmutable, http.StatusUnprocessableEntity},
	{service.ErrInvalidTransition, http.StatusUnprocessableEntity},
}

// statusFor maps a workflow error to its HTTP status.
func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err as JSON. Internal errors are logged and hidden from
// the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(status, gin.H{
			"error":      "Internal server error",
			"request_id": middleware.GetRequestID(c),
		})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
