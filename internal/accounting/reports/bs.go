package reports

import (
	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
)

// BalanceSheetAccount summarises an account on one side of the bilan.
type BalanceSheetAccount struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and total of one side.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet splits classes 1 to 5 into actif and passif. The year's net
// income is carried on the passif side so both totals match when the trial
// balance does.
type BalanceSheet struct {
	Assets      BalanceSheetSection `json:"assets"`
	Liabilities BalanceSheetSection `json:"liabilities"`
	NetIncome   decimal.Decimal     `json:"net_income"`
	Balanced    bool                `json:"balanced"`
}

// BuildBalanceSheet places every balance account by the side of its solde.
// Treasury (class 5) lands on either side depending on its sign.
func BuildBalanceSheet(tb TrialBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Actif", Accounts: []BalanceSheetAccount{}, Total: decimal.Zero}
	liabilities := BalanceSheetSection{Label: "Passif", Accounts: []BalanceSheetAccount{}, Total: decimal.Zero}

	for _, row := range tb.Rows {
		class := accounts.Class(row.Class)
		if class == accounts.ClassExpenses || class == accounts.ClassRevenue {
			continue
		}
		if row.SoldeDebit.IsPositive() {
			assets.Accounts = append(assets.Accounts, BalanceSheetAccount{Code: row.Code, Name: row.Name, Balance: row.SoldeDebit})
			assets.Total = assets.Total.Add(row.SoldeDebit)
		} else if row.SoldeCredit.IsPositive() {
			liabilities.Accounts = append(liabilities.Accounts, BalanceSheetAccount{Code: row.Code, Name: row.Name, Balance: row.SoldeCredit})
			liabilities.Total = liabilities.Total.Add(row.SoldeCredit)
		}
	}

	net := BuildIncomeStatement(tb).NetIncome
	liabilities.Total = liabilities.Total.Add(net)
	return BalanceSheet{
		Assets:      assets,
		Liabilities: liabilities,
		NetIncome:   net,
		Balanced:    assets.Total.Equal(liabilities.Total),
	}
}
