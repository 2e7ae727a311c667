package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/transitops/fleet-ledger/internal/tva"
)

func newVATCommand(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vat",
		Short: "TVA declaration helpers",
	}
	cmd.AddCommand(newVATComputeCommand(env), newVATPeriodCommand(env))
	return cmd
}

func newVATComputeCommand(env Env) *cobra.Command {
	raw := map[string]*string{}
	flags := []struct{ name, usage string }{
		{"collected-20", "TVA collected at 20%"},
		{"collected-14", "TVA collected at 14%"},
		{"collected-10", "TVA collected at 10%"},
		{"collected-7", "TVA collected at 7%"},
		{"deductible-immobilisations", "deductible TVA on fixed assets"},
		{"deductible-charges", "deductible TVA on charges"},
		{"credit-report", "credit carried over from the previous period"},
	}
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the TVA due for a period without storing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]decimal.Decimal, len(raw))
			for name, v := range raw {
				d, err := decimal.NewFromString(*v)
				if err != nil {
					return fmt.Errorf("invalid --%s %q: %w", name, *v, err)
				}
				values[name] = d
			}
			amounts := tva.Amounts{
				Collected20:               values["collected-20"],
				Collected14:               values["collected-14"],
				Collected10:               values["collected-10"],
				Collected7:                values["collected-7"],
				DeductibleImmobilisations: values["deductible-immobilisations"],
				DeductibleCharges:         values["deductible-charges"],
				CreditReport:              values["credit-report"],
			}
			if err := amounts.Validate(); err != nil {
				return err
			}
			res := tva.Compute(amounts)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s %20s\n", "TVA collectée", formatMAD(res.TotalCollected))
			fmt.Fprintf(out, "%-20s %20s\n", "TVA déductible", formatMAD(res.TotalDeductible))
			fmt.Fprintf(out, "%-20s %20s\n", "TVA due", formatMAD(res.TVADue))
			fmt.Fprintf(out, "%-20s %20s\n", "TVA à payer", formatMAD(res.TVAToPay))
			fmt.Fprintf(out, "%-20s %20s\n", "Crédit à reporter", formatMAD(res.NewCreditReport))
			return nil
		},
	}
	for _, f := range flags {
		raw[f.name] = cmd.Flags().String(f.name, "0", f.usage)
	}
	return cmd
}

func newVATPeriodCommand(env Env) *cobra.Command {
	var regime string
	cmd := &cobra.Command{
		Use:   "period <start>",
		Short: "Print the period end for a regime and start date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", args[0])
			if err != nil {
				return fmt.Errorf("invalid start %q: %w", args[0], err)
			}
			r := tva.Regime(strings.ToLower(strings.TrimSpace(regime)))
			in := tva.Input{PeriodStart: start, PeriodEnd: tva.ExpectedEnd(r, start), Regime: r}
			if err := in.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", in.PeriodStart.Format("2006-01-02"), in.PeriodEnd.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&regime, "regime", string(tva.RegimeMonthly), "declaration regime: monthly or quarterly")
	return cmd
}
