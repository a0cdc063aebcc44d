package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsFinancialFields(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/records"),
		attribute.String("description", "Rent"),
		attribute.Float64("amount", 1000),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	err := SafeError(errors.New(strings.Repeat("x", 400)))
	assert.Len(t, err.Error(), 256)
}
