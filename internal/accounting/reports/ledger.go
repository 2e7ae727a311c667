package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountRef identifies the account a report is about.
type AccountRef struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Class int    `json:"class"`
}

// LedgerLine is one validated line against an account, in posting order.
type LedgerLine struct {
	EntryID     int64
	LineID      int64
	Date        time.Time
	PieceNumber string
	Label       string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// LedgerRow is a Grand Livre row.
type LedgerRow struct {
	Date           time.Time       `json:"date"`
	PieceNumber    string          `json:"piece_number"`
	Label          string          `json:"label"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// Ledger is the per-account ledger with its closing figures.
type Ledger struct {
	Account     AccountRef      `json:"account"`
	Rows        []LedgerRow     `json:"rows"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// LedgerBuilder folds lines into running balances seeded at zero. Lines must
// be added in posting order.
type LedgerBuilder struct {
	ledger Ledger
}

func NewLedgerBuilder(account AccountRef) *LedgerBuilder {
	return &LedgerBuilder{ledger: Ledger{
		Account:     account,
		Rows:        []LedgerRow{},
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		Balance:     decimal.Zero,
	}}
}

func (b *LedgerBuilder) Add(line LedgerLine) {
	l := &b.ledger
	l.Balance = l.Balance.Add(line.Debit).Sub(line.Credit)
	l.TotalDebit = l.TotalDebit.Add(line.Debit)
	l.TotalCredit = l.TotalCredit.Add(line.Credit)
	l.Rows = append(l.Rows, LedgerRow{
		Date:           line.Date,
		PieceNumber:    line.PieceNumber,
		Label:          line.Label,
		Debit:          line.Debit,
		Credit:         line.Credit,
		RunningBalance: l.Balance,
	})
}

func (b *LedgerBuilder) Result() Ledger {
	return b.ledger
}

// BuildLedger folds an in-memory slice of lines.
func BuildLedger(account AccountRef, lines []LedgerLine) Ledger {
	b := NewLedgerBuilder(account)
	for _, line := range lines {
		b.Add(line)
	}
	return b.Result()
}
