package csvimport

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMapsColumnsByHeader(t *testing.T) {
	in := "\ufeffDate, Description,category,transaction_type,taxable_amount,tax_rate\n" +
		"2024-01-05,Lunch,Food,expense,120.50,5\n" +
		"\n" +
		"05-01-2024,\"Rent, Jan\",Housing,expense,\"1,000\",\n"

	rows, err := Read(strings.NewReader(in), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, "Lunch", rows[0].Get("description"))
	assert.Equal(t, "5", rows[0].Get("tax_rate"))
	assert.Equal(t, 2, rows[1].Line)
	assert.Equal(t, "Rent, Jan", rows[1].Get("description"))
	assert.Equal(t, "1,000", rows[1].Get("taxable_amount"))
	assert.Empty(t, rows[1].Get("tax_rate"))
	assert.Empty(t, rows[1].Get("tax_type"))
}

func TestReadMissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("date,description\n2024-01-01,x\n"), 10)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "taxable_amount")

	_, err = Read(strings.NewReader(""), 10)
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestReadStopsOnePastLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("date,description,category,transaction_type,taxable_amount\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "2024-01-01,item %d,misc,expense,10\n", i)
	}
	rows, err := Read(strings.NewReader(b.String()), 20)
	require.NoError(t, err)
	assert.Len(t, rows, 21)
}

func TestReadKeepsMalformedLinesAsEmptyRows(t *testing.T) {
	in := "date,description,category,transaction_type,taxable_amount\n" +
		"2024-01-01,\"unterminated,misc,expense,10\n"
	rows, err := Read(strings.NewReader(in), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Fields)
}
