package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taxmate/internal/dispatcher"
	"github.com/smallbiznis/taxmate/internal/identity"
	"github.com/smallbiznis/taxmate/internal/ingest"
	"github.com/smallbiznis/taxmate/internal/ingest/csvimport"
	"github.com/smallbiznis/taxmate/internal/reporting"
	reportingservice "github.com/smallbiznis/taxmate/internal/reporting/service"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
)

type ValidationError struct {
	Row     int    `json:"row,omitempty"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationSentinels maps domain errors that reject a single input field.
var validationSentinels = []struct {
	err   error
	field string
	code  string
}{
	{ErrInvalidRequest, "request", "invalid_request"},
	{reporting.ErrInvalidPeriod, "period", "invalid_period"},
	{reportingservice.ErrInvalidFormat, "format", "invalid_export_format"},
	{domain.ErrInvalidPageToken, "page_token", "invalid_page_token"},
	{csvimport.ErrMissingColumns, "file", "missing_columns"},
	{ingest.ErrEmptyBatch, "records", "empty_batch"},
	{ingest.ErrUnsupportedFile, "file", "unsupported_file"},
}

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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var recordErr *ingest.ValidationErrors
	if errors.As(err, &recordErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fromRowErrors(recordErr.Errors),
		}
	}

	var rejected *ingest.BatchRejectedError
	if errors.As(err, &rejected) {
		payload := errorPayload{
			Type:    "batch_rejected",
			Message: rejected.Error(),
		}
		if rejected.First != nil {
			payload.Errors = fromRowErrors([]ingest.RowError{*rejected.First})
		}
		return http.StatusBadRequest, payload
	}

	for _, v := range validationSentinels {
		if errors.Is(err, v.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors: []ValidationError{
					{Field: v.field, Code: v.code, Message: err.Error()},
				},
			}
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidUser):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, dispatcher.ErrQueueFull),
		errors.Is(err, dispatcher.ErrStopped):
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

func fromRowErrors(rowErrs []ingest.RowError) []ValidationError {
	out := make([]ValidationError, 0, len(rowErrs))
	for _, e := range rowErrs {
		out = append(out, ValidationError{
			Row:     e.Row,
			Field:   e.Field,
			Code:    "invalid",
			Message: e.Message,
		})
	}
	return out
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// classifyErrorForLog returns the payload type and a stable code for the
// request log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	var rejected *ingest.BatchRejectedError
	switch {
	case errors.As(err, &rejected):
		code = rejected.Reason
	case len(payload.Errors) > 0 && payload.Errors[0].Code != "invalid":
		code = payload.Errors[0].Code
	case status == http.StatusInternalServerError:
		code = http.StatusText(status)
	}
	return payload.Type, code
}
