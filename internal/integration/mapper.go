package integration

import (
	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/entries"
	"github.com/transitops/fleet-ledger/internal/accounting/shared"
)

// rateOr applies fallback only when the event carries no rate. An explicit
// zero is an exempt operation.
func rateOr(rate *int, fallback int) int {
	if rate == nil {
		return fallback
	}
	return *rate
}

// purchaseLines books an expense net of tax, the recoverable tax and the
// amount owed including tax. The tax line is left out when no tax is due.
func purchaseLines(expense, vat, payable int64, label string, ht decimal.Decimal, rate int) []entries.LineInput {
	tax := shared.TVAAmount(ht, rate)
	lines := []entries.LineInput{{AccountID: expense, Label: label, Debit: ht, TVARate: rate, TVAAmount: &tax}}
	if !tax.IsZero() {
		lines = append(lines, entries.LineInput{AccountID: vat, Label: "TVA récupérable " + label, Debit: tax})
	}
	return append(lines, entries.LineInput{AccountID: payable, Label: label, Credit: ht.Add(tax)})
}

// saleLines books the receivable including tax against revenue and collected
// tax. The tax line is left out when no tax is due.
func saleLines(receivable, revenue, vat int64, label string, ht decimal.Decimal, rate int) []entries.LineInput {
	tax := shared.TVAAmount(ht, rate)
	lines := []entries.LineInput{
		{AccountID: receivable, Label: label, Debit: ht.Add(tax)},
		{AccountID: revenue, Label: label, Credit: ht, TVARate: rate, TVAAmount: &tax},
	}
	if !tax.IsZero() {
		lines = append(lines, entries.LineInput{AccountID: vat, Label: "TVA facturée " + label, Credit: tax})
	}
	return lines
}
