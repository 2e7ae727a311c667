package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/transitops/fleet-ledger/internal/accounting/reports"
)

type filterFlags struct {
	fiscalYear int64
	from       string
	to         string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.fiscalYear, "fiscal-year", 0, "restrict to a fiscal year id")
	cmd.Flags().StringVar(&f.from, "from", "", "first entry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last entry date (YYYY-MM-DD)")
}

func (f *filterFlags) filter() (reports.Filter, error) {
	var filter reports.Filter
	if f.fiscalYear > 0 {
		id := f.fiscalYear
		filter.FiscalYearID = &id
	}
	for _, d := range []struct {
		raw  string
		dest **time.Time
	}{{f.from, &filter.From}, {f.to, &filter.To}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", d.raw)
		if err != nil {
			return filter, fmt.Errorf("invalid date %q: %w", d.raw, err)
		}
		*d.dest = &t
	}
	return filter, filter.Validate()
}

func newTrialBalanceCommand(env Env) *cobra.Command {
	var flags filterFlags
	cmd := &cobra.Command{
		Use:     "trial-balance",
		Aliases: []string{"tb"},
		Short:   "Print the balance générale of validated entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			reader, closeFn, err := env.Reports(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			tb, err := reader.TrialBalance(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tb.Rows) == 0 {
				fmt.Fprintln(out, "No validated entries.")
				return nil
			}
			row := "%-10s %-30s %20s %20s %20s %20s\n"
			fmt.Fprintf(out, row, "CODE", "NAME", "DEBIT", "CREDIT", "SOLDE DEBIT", "SOLDE CREDIT")
			for _, r := range tb.Rows {
				fmt.Fprintf(out, row, r.Code, truncate(r.Name, 30),
					formatMAD(r.TotalDebit), formatMAD(r.TotalCredit), formatMAD(r.SoldeDebit), formatMAD(r.SoldeCredit))
			}
			fmt.Fprintf(out, row, "", "TOTAL",
				formatMAD(tb.TotalDebit), formatMAD(tb.TotalCredit), formatMAD(tb.SoldeDebit), formatMAD(tb.SoldeCredit))
			if !tb.Balanced {
				fmt.Fprintln(out, "WARNING: trial balance does not balance")
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newLedgerCommand(env Env) *cobra.Command {
	var flags filterFlags
	cmd := &cobra.Command{
		Use:   "ledger <account-code>",
		Short: "Print the grand livre of one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			reader, closeFn, err := env.Reports(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			ledger, err := reader.LedgerByCode(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", ledger.Account.Code, ledger.Account.Name)
			row := "%-10s %-14s %-30s %18s %18s %18s\n"
			fmt.Fprintf(out, row, "DATE", "PIECE", "LABEL", "DEBIT", "CREDIT", "BALANCE")
			for _, r := range ledger.Rows {
				fmt.Fprintf(out, row, r.Date.Format("2006-01-02"), r.PieceNumber, truncate(r.Label, 30),
					formatMAD(r.Debit), formatMAD(r.Credit), formatMAD(r.RunningBalance))
			}
			fmt.Fprintf(out, row, "", "", "TOTAL", formatMAD(ledger.TotalDebit), formatMAD(ledger.TotalCredit), formatMAD(ledger.Balance))
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newIntegrityCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Check that validated entries balance and match their header totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, closeFn, err := env.Reports(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			report, err := reader.Integrity(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "debit %s credit %s\n", formatMAD(report.TotalDebit), formatMAD(report.TotalCredit))
			for _, m := range report.Mismatches {
				fmt.Fprintf(out, "entry %s: header %s/%s, lines %s/%s\n", m.EntryNumber,
					formatMAD(m.HeaderDebit), formatMAD(m.HeaderCredit), formatMAD(m.LineDebit), formatMAD(m.LineCredit))
			}
			if n := report.Anomalies(); n > 0 {
				return fmt.Errorf("%d integrity anomalies", n)
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-2]) + ".."
}
