package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/taxrule"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

const (
	SourceManual        = "manual"
	SourceCSV           = "csv"
	SourceInvoicePrefix = "invoice_upload_"
)

// DateLayout is the wire and CSV form of a record date.
const DateLayout = "2006-01-02"

// TaxRecord is one financial transaction owned by a single user.
//
// TaxRate, TaxAmount and TotalAmount are nullable only for rows written
// before derived amounts were stored; reads backfill them.
type TaxRecord struct {
	ID              snowflake.ID        `gorm:"primaryKey" json:"id"`
	UserID          int64               `gorm:"column:user_id;not null;index" json:"user_id"`
	Source          string              `gorm:"type:text;not null" json:"source"`
	Date            time.Time           `gorm:"type:date;not null" json:"date"`
	Description     string              `gorm:"type:text;not null" json:"description"`
	Category        string              `gorm:"type:text;not null" json:"category"`
	TransactionType TransactionType     `gorm:"column:transaction_type;type:text;not null" json:"transaction_type"`
	TaxableAmount   decimal.Decimal     `gorm:"type:numeric(14,2);not null" json:"taxable_amount"`
	TaxRate         decimal.NullDecimal `gorm:"type:numeric(6,2)" json:"tax_rate"`
	TaxType         string              `gorm:"type:text;not null" json:"tax_type"`
	TaxAmount       decimal.NullDecimal `gorm:"type:numeric(14,2)" json:"tax_amount"`
	TotalAmount     decimal.NullDecimal `gorm:"type:numeric(14,2)" json:"total_amount"`
	ConfidenceScore float64             `gorm:"not null" json:"confidence_score"`
	Metadata        datatypes.JSONMap   `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"not null" json:"updated_at"`
}

func (TaxRecord) TableName() string { return "tax_records" }

// NeedsBackfill reports a legacy row missing any derived value.
func (r *TaxRecord) NeedsBackfill() bool {
	return !r.TaxRate.Valid || !r.TaxAmount.Valid || !r.TotalAmount.Valid
}

// RecomputeTax derives rate, tax and total from the stored rate (or legacy
// tax type) and assigns them.
func (r *TaxRecord) RecomputeTax() {
	var rate *decimal.Decimal
	if r.TaxRate.Valid {
		rate = &r.TaxRate.Decimal
	}
	r.ApplyTax(taxrule.Compute(r.TaxableAmount, rate, r.TaxType))
}

func (r *TaxRecord) ApplyTax(res taxrule.Result) {
	r.TaxRate = decimal.NewNullDecimal(res.Rate)
	r.TaxAmount = decimal.NewNullDecimal(res.Tax)
	r.TotalAmount = decimal.NewNullDecimal(res.Total)
}

func (r TaxRecord) IsIncome() bool           { return r.TransactionType == TransactionIncome }
func (r TaxRecord) Taxable() decimal.Decimal { return r.TaxableAmount }
func (r TaxRecord) LegacyTaxType() string    { return r.TaxType }

// Tax is the derived tax, zero for a row not yet backfilled.
func (r TaxRecord) Tax() decimal.Decimal {
	if !r.TaxAmount.Valid {
		return decimal.Zero
	}
	return r.TaxAmount.Decimal
}

// Total is the derived total, zero for a row not yet backfilled.
func (r TaxRecord) Total() decimal.Decimal {
	if !r.TotalAmount.Valid {
		return decimal.Zero
	}
	return r.TotalAmount.Decimal
}

// Candidate is a record that has not been validated or stored yet.
type Candidate struct {
	Row             int
	Date            time.Time
	Description     string
	Category        string
	TransactionType TransactionType
	TaxableAmount   decimal.Decimal
	TaxRate         *decimal.Decimal
	TaxType         string
	Source          string
	ConfidenceScore float64
	Metadata        map[string]any
}

// Fingerprint identifies duplicates inside one ingestion batch.
type Fingerprint struct {
	UserID      int64
	Date        string
	Description string
	Amount      string
}

func (c Candidate) Fingerprint(userID int64) Fingerprint {
	return Fingerprint{
		UserID:      userID,
		Date:        c.Date.Format(DateLayout),
		Description: strings.ToLower(strings.TrimSpace(c.Description)),
		Amount:      c.TaxableAmount.String(),
	}
}

// ToRecord assigns identity, computes tax, and stamps timestamps.
func (c Candidate) ToRecord(id snowflake.ID, userID int64, now time.Time) *TaxRecord {
	taxType := strings.ToUpper(strings.TrimSpace(c.TaxType))
	if taxType == "" {
		taxType = taxrule.TaxTypeNone
	}
	rec := &TaxRecord{
		ID:              id,
		UserID:          userID,
		Source:          c.Source,
		Date:            c.Date,
		Description:     strings.TrimSpace(c.Description),
		Category:        strings.TrimSpace(c.Category),
		TransactionType: c.TransactionType,
		TaxableAmount:   c.TaxableAmount,
		TaxType:         taxType,
		ConfidenceScore: c.ConfidenceScore,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if len(c.Metadata) > 0 {
		rec.Metadata = datatypes.JSONMap(c.Metadata)
	}
	rec.ApplyTax(taxrule.Compute(c.TaxableAmount, c.TaxRate, taxType))
	return rec
}

// DateRange is an inclusive date filter; nil bounds are open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}
