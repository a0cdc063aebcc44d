package ingest

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ReasonRowLimit   = "row_limit_exceeded"
	ReasonErrorRatio = "error_ratio_exceeded"
)

var (
	ErrEmptyBatch      = errors.New("empty_batch")
	ErrUnsupportedFile = errors.New("unsupported_file")
)

// RowError locates one invalid field. Row is 1-based within the batch.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Message)
}

// ValidationErrors rejects a single record with every problem found.
type ValidationErrors struct {
	Errors []RowError
}

func (e *ValidationErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, re := range e.Errors {
		if re.Field == "" {
			parts = append(parts, re.Message)
			continue
		}
		parts = append(parts, re.Field+" "+re.Message)
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

// BatchRejectedError stops a whole batch before anything is persisted.
type BatchRejectedError struct {
	Reason string
	Rows   int
	Limit  int
	Errors int
	First  *RowError
}

func (e *BatchRejectedError) Error() string {
	switch e.Reason {
	case ReasonRowLimit:
		return fmt.Sprintf("batch exceeds max limit of %d rows", e.Limit)
	default:
		msg := fmt.Sprintf("too many invalid rows (%d of %d)", e.Errors, e.Rows)
		if e.First != nil {
			msg += "; first error: " + e.First.Error()
		}
		return msg
	}
}
