// Package handlers implements the HTTP handlers of the reconciliation API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/expense-reconciler/internal/api/dto"
	"github.com/eshaffer321/expense-reconciler/internal/application/service"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Base provides shared functionality for all handlers.
type Base struct {
	logger *slog.Logger
}

// NewBase creates a new base handler.
func NewBase(logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{logger: logger}
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(c *gin.Context, status int, err dto.APIError) {
	c.AbortWithStatusJSON(status, err)
}

// WriteDomainError maps an application error to its HTTP status.
func (b *Base) WriteDomainError(c *gin.Context, err error) {
	var (
		cfgErr      *model.ConfigurationError
		validErr    *model.ValidationError
		conflictErr *model.ConflictError
	)
	switch {
	case errors.As(err, &cfgErr):
		b.WriteError(c, http.StatusBadRequest, dto.APIError{
			Code:    dto.ErrCodeConfiguration,
			Message: err.Error(),
			Field:   cfgErr.Field,
		})
	case errors.As(err, &validErr):
		b.WriteError(c, http.StatusBadRequest, dto.APIError{
			Code:    dto.ErrCodeValidation,
			Message: err.Error(),
			Field:   validErr.Field,
		})
	case errors.As(err, &conflictErr):
		b.WriteError(c, http.StatusConflict, dto.ConflictError(conflictErr.Error()))
	case errors.Is(err, model.ErrNotReconciled):
		b.WriteError(c, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, service.ErrJobRunning):
		b.WriteError(c, http.StatusConflict, dto.NewAPIError(dto.ErrCodeJobRunning, err.Error()))
	case errors.Is(err, service.ErrJobFinished):
		b.WriteError(c, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, model.ErrNotFound), errors.Is(err, service.ErrJobNotFound):
		b.WriteError(c, http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	default:
		b.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		b.WriteError(c, http.StatusInternalServerError, dto.InternalError())
	}
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(c *gin.Context, name string, defaultVal int) int {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseOptionalIntParam parses an integer query parameter that may be absent.
// A present but malformed value is an error.
func ParseOptionalIntParam(c *gin.Context, name string) (*int, error) {
	val, ok := c.GetQuery(name)
	if !ok || val == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &parsed, nil
}

// ParseBoolParam parses a boolean query parameter that may be absent.
func ParseBoolParam(c *gin.Context, name string) *bool {
	val, ok := c.GetQuery(name)
	if !ok || val == "" {
		return nil
	}
	b := val == "true" || val == "1"
	return &b
}
