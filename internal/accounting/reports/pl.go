package reports

import (
	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
)

// IncomeStatementAccount is a revenue or expense account summary.
type IncomeStatementAccount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// IncomeStatementSection groups accounts by nature.
type IncomeStatementSection struct {
	Label    string                   `json:"label"`
	Accounts []IncomeStatementAccount `json:"accounts"`
	Total    decimal.Decimal          `json:"total"`
}

// IncomeStatement is the CPC: class 7 revenue against class 6 expenses.
type IncomeStatement struct {
	Revenue   IncomeStatementSection `json:"revenue"`
	Expense   IncomeStatementSection `json:"expense"`
	NetIncome decimal.Decimal        `json:"net_income"`
}

// BuildIncomeStatement derives the income statement from trial balance rows,
// which are already sorted by code.
func BuildIncomeStatement(tb TrialBalance) IncomeStatement {
	revenue := IncomeStatementSection{Label: accounts.ClassRevenue.Label(), Accounts: []IncomeStatementAccount{}, Total: decimal.Zero}
	expense := IncomeStatementSection{Label: accounts.ClassExpenses.Label(), Accounts: []IncomeStatementAccount{}, Total: decimal.Zero}

	for _, row := range tb.Rows {
		switch accounts.Class(row.Class) {
		case accounts.ClassRevenue:
			amount := row.TotalCredit.Sub(row.TotalDebit)
			revenue.Accounts = append(revenue.Accounts, IncomeStatementAccount{Code: row.Code, Name: row.Name, Amount: amount})
			revenue.Total = revenue.Total.Add(amount)
		case accounts.ClassExpenses:
			amount := row.TotalDebit.Sub(row.TotalCredit)
			expense.Accounts = append(expense.Accounts, IncomeStatementAccount{Code: row.Code, Name: row.Name, Amount: amount})
			expense.Total = expense.Total.Add(amount)
		}
	}

	return IncomeStatement{
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: revenue.Total.Sub(expense.Total),
	}
}
