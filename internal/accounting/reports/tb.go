package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
)

// AccountTotals is the validated movement of one account.
type AccountTotals struct {
	AccountID int64
	Code      string
	Name      string
	Class     int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// TrialBalanceRow is one account of the balance générale. Exactly one of the
// solde columns is non-zero unless the account is settled.
type TrialBalanceRow struct {
	AccountID   int64           `json:"account_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Class       int             `json:"class"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	SoldeDebit  decimal.Decimal `json:"solde_debit"`
	SoldeCredit decimal.Decimal `json:"solde_credit"`
}

// ClassSubtotal sums the rows of one account class.
type ClassSubtotal struct {
	Class       int             `json:"class"`
	Label       string          `json:"label"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	SoldeDebit  decimal.Decimal `json:"solde_debit"`
	SoldeCredit decimal.Decimal `json:"solde_credit"`
}

// TrialBalance is the final structure served to clients.
type TrialBalance struct {
	Rows        []TrialBalanceRow `json:"rows"`
	Classes     []ClassSubtotal   `json:"classes"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	SoldeDebit  decimal.Decimal   `json:"solde_debit"`
	SoldeCredit decimal.Decimal   `json:"solde_credit"`
	Balanced    bool              `json:"balanced"`
}

// TrialBalanceBuilder accumulates account totals, possibly split over several
// streamed rows per account.
type TrialBalanceBuilder struct {
	rows map[int64]*TrialBalanceRow
}

func NewTrialBalanceBuilder() *TrialBalanceBuilder {
	return &TrialBalanceBuilder{rows: make(map[int64]*TrialBalanceRow)}
}

func (b *TrialBalanceBuilder) Add(t AccountTotals) {
	row, ok := b.rows[t.AccountID]
	if !ok {
		row = &TrialBalanceRow{
			AccountID:   t.AccountID,
			Code:        t.Code,
			Name:        t.Name,
			Class:       t.Class,
			TotalDebit:  decimal.Zero,
			TotalCredit: decimal.Zero,
		}
		b.rows[t.AccountID] = row
	}
	row.TotalDebit = row.TotalDebit.Add(t.Debit)
	row.TotalCredit = row.TotalCredit.Add(t.Credit)
}

func (b *TrialBalanceBuilder) Result() TrialBalance {
	result := TrialBalance{
		Rows:        make([]TrialBalanceRow, 0, len(b.rows)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		SoldeDebit:  decimal.Zero,
		SoldeCredit: decimal.Zero,
	}
	for _, row := range b.rows {
		diff := row.TotalDebit.Sub(row.TotalCredit)
		row.SoldeDebit, row.SoldeCredit = decimal.Zero, decimal.Zero
		if diff.IsPositive() {
			row.SoldeDebit = diff
		} else {
			row.SoldeCredit = diff.Neg()
		}
		result.Rows = append(result.Rows, *row)
	}
	sort.Slice(result.Rows, func(i, j int) bool { return result.Rows[i].Code < result.Rows[j].Code })

	classes := make(map[int]*ClassSubtotal)
	for _, row := range result.Rows {
		sub, ok := classes[row.Class]
		if !ok {
			sub = &ClassSubtotal{
				Class:       row.Class,
				Label:       accounts.Class(row.Class).Label(),
				TotalDebit:  decimal.Zero,
				TotalCredit: decimal.Zero,
				SoldeDebit:  decimal.Zero,
				SoldeCredit: decimal.Zero,
			}
			classes[row.Class] = sub
		}
		sub.TotalDebit = sub.TotalDebit.Add(row.TotalDebit)
		sub.TotalCredit = sub.TotalCredit.Add(row.TotalCredit)
		sub.SoldeDebit = sub.SoldeDebit.Add(row.SoldeDebit)
		sub.SoldeCredit = sub.SoldeCredit.Add(row.SoldeCredit)
		result.TotalDebit = result.TotalDebit.Add(row.TotalDebit)
		result.TotalCredit = result.TotalCredit.Add(row.TotalCredit)
		result.SoldeDebit = result.SoldeDebit.Add(row.SoldeDebit)
		result.SoldeCredit = result.SoldeCredit.Add(row.SoldeCredit)
	}
	result.Classes = make([]ClassSubtotal, 0, len(classes))
	for _, sub := range classes {
		result.Classes = append(result.Classes, *sub)
	}
	sort.Slice(result.Classes, func(i, j int) bool { return result.Classes[i].Class < result.Classes[j].Class })
	result.Balanced = result.TotalDebit.Equal(result.TotalCredit)
	return result
}

// BuildTrialBalance converts account totals into the trial balance.
func BuildTrialBalance(totals []AccountTotals) TrialBalance {
	b := NewTrialBalanceBuilder()
	for _, t := range totals {
		b.Add(t)
	}
	return b.Result()
}
