// Package invoiceparse turns OCR text from an invoice image into a candidate
// expense record. Parsing never fails; missing fields stay empty and the
// caller decides whether the result is usable.
package invoiceparse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
)

const (
	DefaultCategory      = "Office Expense"
	maxDescriptionLength = 100
	minDescriptionLength = 5
)

type dateOrder int

const (
	yearFirst dateOrder = iota
	dayFirst
	dayFirstShortYear
)

type datePattern struct {
	re    *regexp.Regexp
	order dateOrder
}

// Tried in order; the first pattern whose first match is a real date wins.
var datePatterns = []datePattern{
	{regexp.MustCompile(`\b(\d{4})[/-](\d{1,2})[/-](\d{1,2})\b`), yearFirst},
	{regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`), dayFirst},
	{regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2})\b`), dayFirstShortYear},
}

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:total|amount|due|payable)[\s\w]*?[:=]?\s*[$₹Rs.]?\s*(\d+(?:,\d+)*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)[$₹Rs]\.?\s*(\d+(?:,\d+)*(?:\.\d{2})?)`),
}

var onlyDigitsOrPunct = regexp.MustCompile(`^[\d\W]+$`)

// Parsed holds the fields recovered from one invoice. Date falls back to the
// parse day when the text carries none.
type Parsed struct {
	Date        time.Time
	DateFound   bool
	Description string
	Amount      decimal.NullDecimal
	Category    string
}

func (p Parsed) MarshalJSON() ([]byte, error) {
	var desc *string
	if p.Description != "" {
		desc = &p.Description
	}
	return json.Marshal(struct {
		Date        string              `json:"date"`
		Description *string             `json:"description"`
		Amount      decimal.NullDecimal `json:"amount"`
		Category    string              `json:"category"`
	}{
		Date:        p.Date.Format(domain.DateLayout),
		Description: desc,
		Amount:      p.Amount,
		Category:    p.Category,
	})
}

// Parse extracts date, amount and description from OCR text.
func Parse(text string, today time.Time) Parsed {
	p := Parsed{Category: DefaultCategory}

	if d, ok := findDate(text); ok {
		p.Date, p.DateFound = d, true
	} else {
		y, m, dd := today.Date()
		p.Date = time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	}

	if amt, ok := findAmount(text); ok {
		p.Amount = decimal.NewNullDecimal(amt)
	}
	p.Description = findDescription(text)
	return p
}

func findDate(text string) (time.Time, bool) {
	for _, pat := range datePatterns {
		m := pat.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])

		var y, mo, d int
		switch pat.order {
		case yearFirst:
			y, mo, d = a, b, c
		case dayFirst:
			d, mo, y = a, b, c
		case dayFirstShortYear:
			d, mo, y = a, b, expandYear(c)
		}
		if t, ok := validDate(y, mo, d); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// expandYear maps two-digit years the POSIX way: 69-99 to 19xx, 00-68 to 20xx.
func expandYear(yy int) int {
	if yy >= 69 {
		return 1900 + yy
	}
	return 2000 + yy
}

func validDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// findAmount returns the largest keyword- or currency-prefixed number.
func findAmount(text string) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, re := range amountPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
			if err != nil {
				continue
			}
			if !found || v.GreaterThan(best) {
				best, found = v, true
			}
		}
	}
	return best, found
}

func findDescription(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minDescriptionLength || onlyDigitsOrPunct.MatchString(line) {
			continue
		}
		if utf8.RuneCountInString(line) > maxDescriptionLength {
			line = string([]rune(line)[:maxDescriptionLength])
		}
		return line
	}
	return ""
}
