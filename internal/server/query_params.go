package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	reportingservice "github.com/smallbiznis/taxmate/internal/reporting/service"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidDate = errors.New("invalid_date")

func parseOptionalDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return nil, errInvalidDate
	}
	return &parsed, nil
}

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

// dateRangeQuery reads start_date and end_date as an inclusive range.
func dateRangeQuery(c *gin.Context) (domain.DateRange, error) {
	start, err := parseOptionalDate(c.Query("start_date"))
	if err != nil {
		return domain.DateRange{}, newValidationError("start_date", "invalid_date", "start_date must be YYYY-MM-DD")
	}
	end, err := parseOptionalDate(c.Query("end_date"))
	if err != nil {
		return domain.DateRange{}, newValidationError("end_date", "invalid_date", "end_date must be YYYY-MM-DD")
	}
	if start != nil && end != nil && end.Before(*start) {
		return domain.DateRange{}, newValidationError("end_date", "invalid_range", "end_date is before start_date")
	}
	return domain.DateRange{Start: start, End: end}, nil
}

func periodQuery(c *gin.Context) (reportingservice.PeriodQuery, error) {
	rng, err := dateRangeQuery(c)
	if err != nil {
		return reportingservice.PeriodQuery{}, err
	}
	return reportingservice.PeriodQuery{
		Period: strings.ToLower(strings.TrimSpace(c.Query("period"))),
		Start:  rng.Start,
		End:    rng.End,
	}, nil
}
