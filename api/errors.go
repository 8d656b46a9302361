package api

import (
	"errors"
	"net/http"

	"github.com/dctmfoo/AIResearchScribe/services"
	"github.com/dctmfoo/AIResearchScribe/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps a service or storage error to the HTTP status and the message
// clients are allowed to see. Internals never leave the process.
func statusFor(err error) (int, string) {
	var inputErr *services.InvalidInputError
	var providerErr *services.ProviderError
	var schemaErr *services.SchemaValidationError

	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Error()
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "article not found"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, services.ErrInvalidCredentials.Error()
	case errors.As(err, &providerErr):
		return http.StatusInternalServerError, providerErr.UserMessage()
	case errors.As(err, &schemaErr):
		return http.StatusInternalServerError, "the generated article was malformed, please try again"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondError logs the cause and writes {"error": message}.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status, message := statusFor(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", status),
		zap.String("route", c.FullPath()),
		zap.String("request_id", requestID(c)),
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
	} else {
		log.Info("Request rejected", fields...)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
