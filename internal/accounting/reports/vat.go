package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
)

// VATRow is the TVA carried by validated lines of one account class and rate,
// on the debit or credit side.
type VATRow struct {
	Class      int
	Rate       int
	CreditSide bool
	Amount     decimal.Decimal
}

// VATBreakdown suggests declaration inputs from the books. It is advisory and
// never creates a declaration.
type VATBreakdown struct {
	From                      time.Time       `json:"from"`
	To                        time.Time       `json:"to"`
	Collected20               decimal.Decimal `json:"collected_20"`
	Collected14               decimal.Decimal `json:"collected_14"`
	Collected10               decimal.Decimal `json:"collected_10"`
	Collected7                decimal.Decimal `json:"collected_7"`
	DeductibleImmobilisations decimal.Decimal `json:"deductible_immobilisations"`
	DeductibleCharges         decimal.Decimal `json:"deductible_charges"`
}

// VATBreakdownBuilder folds VAT rows. Revenue lines count as collected on the
// credit side; fixed asset and expense lines count as deductible on the debit
// side. The opposite side offsets, so reversals cancel out.
type VATBreakdownBuilder struct {
	result VATBreakdown
}

func NewVATBreakdownBuilder(from, to time.Time) *VATBreakdownBuilder {
	return &VATBreakdownBuilder{result: VATBreakdown{
		From:                      from,
		To:                        to,
		Collected20:               decimal.Zero,
		Collected14:               decimal.Zero,
		Collected10:               decimal.Zero,
		Collected7:                decimal.Zero,
		DeductibleImmobilisations: decimal.Zero,
		DeductibleCharges:         decimal.Zero,
	}}
}

func (b *VATBreakdownBuilder) Add(row VATRow) {
	r := &b.result
	switch accounts.Class(row.Class) {
	case accounts.ClassRevenue:
		amount := row.Amount
		if !row.CreditSide {
			amount = amount.Neg()
		}
		switch row.Rate {
		case 20:
			r.Collected20 = r.Collected20.Add(amount)
		case 14:
			r.Collected14 = r.Collected14.Add(amount)
		case 10:
			r.Collected10 = r.Collected10.Add(amount)
		case 7:
			r.Collected7 = r.Collected7.Add(amount)
		}
	case accounts.ClassFixedAssets, accounts.ClassExpenses:
		if row.Rate == 0 {
			return
		}
		amount := row.Amount
		if row.CreditSide {
			amount = amount.Neg()
		}
		if accounts.Class(row.Class) == accounts.ClassFixedAssets {
			r.DeductibleImmobilisations = r.DeductibleImmobilisations.Add(amount)
		} else {
			r.DeductibleCharges = r.DeductibleCharges.Add(amount)
		}
	}
}

func (b *VATBreakdownBuilder) Result() VATBreakdown {
	return b.result
}
