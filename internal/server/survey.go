package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	observationdomain "github.com/smallbiznis/noisesurvey/internal/observation/domain"
)

const (
	messageSaved        = "submission saved"
	messageInvalidBody  = "request body must be a JSON object"
	messageStoreFailure = "could not save the submission, please try again"
)

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubmitSurvey stores one submission. Every failure answers with the same
// {success, message} shape the survey form reads.
func (s *Server) SubmitSurvey(c *gin.Context) {
	var req observationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ErrInvalidRequest)
		c.JSON(http.StatusBadRequest, submitResponse{Message: bindMessage(err)})
		return
	}

	if _, err := s.observationSvc.Create(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, observationdomain.ErrValidation),
			errors.Is(err, observationdomain.ErrSerialization):
			c.JSON(http.StatusBadRequest, submitResponse{Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, submitResponse{Message: messageStoreFailure})
		}
		return
	}

	c.JSON(http.StatusOK, submitResponse{Success: true, Message: messageSaved})
}

// GetSurveyData returns every submission, newest first.
func (s *Server) GetSurveyData(c *gin.Context) {
	items, err := s.observationSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// bindMessage names the offending field when the body is JSON of the wrong shape.
func bindMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type))
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		return "timestamp must be an RFC 3339 date-time"
	}
	return messageInvalidBody
}

func jsonKind(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "number"
	default:
		return "value"
	}
}
