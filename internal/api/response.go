package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/engdrill/internal/drill"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorEnvelope{Error: apiError{Message: message, Code: code}})
}

// respondServiceError maps drill errors to HTTP statuses. Unexpected errors
// are logged and answered with a generic body.
func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	var vErr *drill.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondError(c, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.Is(err, drill.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, drill.ErrSessionExpired):
		respondError(c, http.StatusGone, "session_expired", err.Error())
	case errors.Is(err, drill.ErrConflict):
		respondError(c, http.StatusConflict, "conflict", err.Error())
	default:
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", currentUser(c)),
			zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
