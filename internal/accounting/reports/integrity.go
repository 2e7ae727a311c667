package reports

import "github.com/shopspring/decimal"

// Mismatch is a validated entry whose stored header disagrees with its lines
// or whose lines do not balance.
type Mismatch struct {
	EntryID      int64           `json:"entry_id"`
	EntryNumber  string          `json:"entry_number"`
	HeaderDebit  decimal.Decimal `json:"header_debit"`
	HeaderCredit decimal.Decimal `json:"header_credit"`
	LineDebit    decimal.Decimal `json:"line_debit"`
	LineCredit   decimal.Decimal `json:"line_credit"`
}

// IntegrityReport summarises a full scan of the validated books.
type IntegrityReport struct {
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Balanced    bool            `json:"balanced"`
	Mismatches  []Mismatch      `json:"mismatches"`
}

// Anomalies counts the problems found.
func (r IntegrityReport) Anomalies() int {
	n := len(r.Mismatches)
	if !r.Balanced {
		n++
	}
	return n
}
