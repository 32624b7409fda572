// Package apierr maps engine errors to HTTP responses.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"
	"github.com/gin-gonic/gin"
)

// Status returns the HTTP status for err.
// Rejected input, name collisions and locked tags are all client errors.
func Status(err error) int {
	var v *reconcile.ValidationError
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrLocked):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Message returns the client-facing text for err
func Message(err error, what string) string {
	var v *reconcile.ValidationError
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.Is(err, reconcile.ErrConflict):
		return what + " with this name already exists"
	case errors.Is(err, reconcile.ErrLocked):
		return "This tag is reserved and cannot be deleted"
	case errors.Is(err, reconcile.ErrNotFound):
		return what + " not found"
	}
	return "Something went wrong"
}

// Write sends {message} with the status for err. Server errors are logged
// with their cause; the client only sees a generic message.
func Write(c *gin.Context, logger *slog.Logger, err error, what string) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.FullPath()), slog.Any("error", err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"message": Message(err, what)})
}
