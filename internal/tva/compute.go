package tva

import (
	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
)

// Result holds the derived figures of a declaration.
type Result struct {
	TotalCollected  decimal.Decimal `json:"total_collected"`
	TotalDeductible decimal.Decimal `json:"total_deductible"`
	TVADue          decimal.Decimal `json:"tva_due"`
	TVAToPay        decimal.Decimal `json:"tva_to_pay"`
	NewCreditReport decimal.Decimal `json:"new_credit_report"`
}

// Compute derives due, payable and carried-over TVA. It reads nothing but a.
func Compute(a Amounts) Result {
	collected := a.Collected20.Add(a.Collected14).Add(a.Collected10).Add(a.Collected7)
	deductible := a.DeductibleImmobilisations.Add(a.DeductibleCharges)
	due := collected.Sub(deductible)

	var credit decimal.Decimal
	switch {
	case due.IsNegative():
		credit = due.Abs().Add(a.CreditReport)
	case a.CreditReport.GreaterThan(due):
		credit = a.CreditReport.Sub(due)
	default:
		credit = decimal.Zero
	}

	return Result{
		TotalCollected:  collected,
		TotalDeductible: deductible,
		TVADue:          due,
		TVAToPay:        shared.Max(decimal.Zero, due.Sub(a.CreditReport)),
		NewCreditReport: credit,
	}
}
