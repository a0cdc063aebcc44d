package taxrule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestComputeExplicitRate(t *testing.T) {
	cases := []struct {
		name    string
		taxable string
		rate    string
		tax     string
		total   string
	}{
		{name: "gst on round amount", taxable: "1000", rate: "18", tax: "180", total: "1180"},
		{name: "zero rate", taxable: "250.50", rate: "0", tax: "0", total: "250.5"},
		{name: "fractional rate", taxable: "99.99", rate: "12.5", tax: "12.5", total: "112.49"},
		{name: "half to even rounds down", taxable: "2.5", rate: "5", tax: "0.12", total: "2.62"},
		{name: "half to even rounds up", taxable: "2.7", rate: "5", tax: "0.14", total: "2.84"},
		{name: "full rate", taxable: "10", rate: "100", tax: "10", total: "20"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Compute(d(tc.taxable), ptr(tc.rate), "")
			assert.True(t, d(tc.rate).Equal(res.Rate), "rate %s", res.Rate)
			assert.True(t, d(tc.tax).Equal(res.Tax), "tax %s", res.Tax)
			assert.True(t, d(tc.total).Equal(res.Total), "total %s", res.Total)
		})
	}
}

func TestRoundIsHalfToEven(t *testing.T) {
	assert.Equal(t, "0.12", Round(d("0.125")).StringFixed(2))
	assert.Equal(t, "0.14", Round(d("0.135")).StringFixed(2))
	assert.Equal(t, "-0.12", Round(d("-0.125")).StringFixed(2))
}

func TestComputeLegacyFallback(t *testing.T) {
	gst := Compute(d("500"), nil, "GST")
	assert.True(t, d("18").Equal(gst.Rate))
	assert.True(t, d("90").Equal(gst.Tax))
	assert.True(t, d("590").Equal(gst.Total))

	for _, taxType := range []string{"NONE", "", "VAT"} {
		res := Compute(d("500"), nil, taxType)
		assert.True(t, res.Rate.IsZero(), "tax type %q", taxType)
		assert.True(t, res.Tax.IsZero())
		assert.True(t, d("500").Equal(res.Total))
	}
}

func TestComputeExplicitRateWinsOverTaxType(t *testing.T) {
	res := Compute(d("100"), ptr("5"), "GST")
	assert.True(t, d("5").Equal(res.Rate))
	assert.True(t, d("5").Equal(res.Tax))
}

func TestComputeIsIdempotent(t *testing.T) {
	for _, taxable := range []string{"0.01", "1.11", "333.33", "1000000", "12345.67"} {
		for _, rate := range []string{"0", "3", "12.5", "18", "28", "99.99", "100"} {
			first := Compute(d(taxable), ptr(rate), "GST")
			second := Compute(d(taxable), &first.Rate, "NONE")
			assert.True(t, first.Tax.Equal(second.Tax), "%s@%s", taxable, rate)
			assert.True(t, first.Total.Equal(second.Total), "%s@%s", taxable, rate)

			want := Round(d(taxable).Mul(d(rate)).Div(d("100")))
			assert.True(t, want.Equal(first.Tax))
			assert.True(t, Round(d(taxable).Add(want)).Equal(first.Total))
		}
	}

	legacy := Compute(d("200"), nil, "GST")
	again := Compute(d("200"), &legacy.Rate, "")
	assert.True(t, legacy.Rate.Equal(again.Rate))
	assert.True(t, legacy.Total.Equal(again.Total))
}

func TestIncomeTaxSlabs(t *testing.T) {
	cases := map[string]string{
		"0":       "0",
		"250000":  "0",
		"300000":  "2500",
		"500000":  "12500",
		"750000":  "62500",
		"1000000": "112500",
		"1200000": "172500",
	}
	for income, want := range cases {
		got := IncomeTax(d(income))
		assert.True(t, d(want).Equal(got), "income %s: got %s", income, got)
	}
}

type fakeRecord struct {
	income  bool
	taxable string
	tax     string
	taxType string
}

func (f fakeRecord) IsIncome() bool             { return f.income }
func (f fakeRecord) Taxable() decimal.Decimal   { return d(f.taxable) }
func (f fakeRecord) Tax() decimal.Decimal       { return d(f.tax) }
func (f fakeRecord) LegacyTaxType() string      { return f.taxType }

func TestBuildSummary(t *testing.T) {
	records := []fakeRecord{
		{income: true, taxable: "300000", tax: "0", taxType: "NONE"},
		{income: false, taxable: "1000", tax: "180", taxType: "GST"},
		{income: false, taxable: "500", tax: "25", taxType: ""},
	}

	s := BuildSummary(records)
	assert.True(t, d("300000").Equal(s.TotalIncome))
	assert.True(t, d("1500").Equal(s.TotalExpense))
	assert.True(t, d("180").Equal(s.GSTPaid))
	assert.True(t, d("2500").Equal(s.EstimatedIncomeTax))
	assert.True(t, d("2680").Equal(s.EstimatedTotalTax))
}
