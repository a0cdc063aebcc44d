package reporting

import (
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
)

const (
	PeriodMonth     = "month"
	PeriodPrevMonth = "prev_month"
	PeriodFY        = "fy"
	PeriodYTD       = "ytd"
	PeriodCustom    = "custom"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// ResolvePeriod turns a named period into an inclusive date range relative to
// today. An empty period or "custom" keeps the explicit bounds as given; a
// named period overrides them.
func ResolvePeriod(period string, today time.Time, start, end *time.Time) (domain.DateRange, error) {
	today = dateOf(today)
	y, m, _ := today.Date()

	switch strings.ToLower(strings.TrimSpace(period)) {
	case "", PeriodCustom:
		return domain.DateRange{Start: datePtr(start), End: datePtr(end)}, nil
	case PeriodMonth:
		return span(date(y, m, 1), today), nil
	case PeriodPrevMonth:
		lastOfPrev := date(y, m, 1).AddDate(0, 0, -1)
		py, pm, _ := lastOfPrev.Date()
		return span(date(py, pm, 1), lastOfPrev), nil
	case PeriodFY:
		fyStart := y
		if m < time.April {
			fyStart--
		}
		return span(date(fyStart, time.April, 1), date(fyStart+1, time.March, 31)), nil
	case PeriodYTD:
		return span(date(y, time.January, 1), today), nil
	default:
		return domain.DateRange{}, ErrInvalidPeriod
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return date(y, m, d)
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := dateOf(*t)
	return &v
}

func span(start, end time.Time) domain.DateRange {
	return domain.DateRange{Start: &start, End: &end}
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}
