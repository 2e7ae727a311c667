package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.French)

// formatMAD renders d the way Moroccan statements print dirhams: grouped
// thousands, a decimal comma and two fraction digits.
func formatMAD(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0)
	cents := d.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s,%02d MAD", sign, printer.Sprintf("%d", whole.IntPart()), cents)
}
