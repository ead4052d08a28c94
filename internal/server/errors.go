package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	observationdomain "github.com/smallbiznis/noisesurvey/internal/observation/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, observationdomain.ErrValidation):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code attached to request logs.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, ErrInvalidRequest):
		return "validation_error", "invalid_request"
	case errors.Is(err, ErrNotFound):
		return "not_found", "not_found"
	case errors.Is(err, ErrServiceUnavailable):
		return "dependency_error", "service_unavailable"
	}

	kind := observationdomain.Kind(err)
	var verr *observationdomain.ValidationError
	if errors.As(err, &verr) {
		return kind, "missing_" + verr.Field
	}
	var serr *observationdomain.StoreError
	if errors.As(err, &serr) {
		return kind, serr.Op
	}
	return kind, kind
}
