package entries

import (
	"time"

	"github.com/shopspring/decimal"

	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Status enumerates entry lifecycle states.
type Status string

const (
	StatusDraft     Status = internalShared.StatusDraft
	StatusValidated Status = internalShared.StatusValidated
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusValidated
}

// SourceReversal tags entries produced by Reverse; SourceID holds the reversed entry.
const SourceReversal = "entry.reversal"

// Entry is a double-entry journal entry with its owned lines.
type Entry struct {
	ID           int64           `json:"id"`
	EntryNumber  string          `json:"entry_number"`
	EntryDate    time.Time       `json:"entry_date"`
	JournalID    int64           `json:"journal_id"`
	FiscalYearID int64           `json:"fiscal_year_id"`
	Description  string          `json:"description"`
	Reference    *string         `json:"reference,omitempty"`
	SourceType   *string         `json:"source_type,omitempty"`
	SourceID     *int64          `json:"source_id,omitempty"`
	Status       Status          `json:"status"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	CreatedBy    *int64          `json:"created_by,omitempty"`
	ValidatedBy  *int64          `json:"validated_by,omitempty"`
	ValidatedAt  *time.Time      `json:"validated_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Lines        []Line          `json:"lines"`
}

// IsDraft reports whether the entry may still be edited or deleted.
func (e Entry) IsDraft() bool {
	return e.Status == StatusDraft
}

// Line is a single debit and/or credit movement against a detail account.
type Line struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entry_id"`
	Position  int             `json:"position"`
	AccountID int64           `json:"account_id"`
	Label     string          `json:"label"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	TVARate   int             `json:"tva_rate"`
	TVAAmount decimal.Decimal `json:"tva_amount"`
}

// Totals sums debit and credit over lines.
func Totals(lines []Line) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status       *Status
	JournalID    *int64
	FiscalYearID *int64
	Limit        int
	Offset       int
}
