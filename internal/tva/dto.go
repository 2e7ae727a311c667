package tva

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Input describes a declaration to create or a draft to replace.
type Input struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Regime      Regime
	Amounts     Amounts
	Notes       string
}

func (in *Input) normalize() {
	in.PeriodStart = truncateDay(in.PeriodStart)
	in.PeriodEnd = truncateDay(in.PeriodEnd)
	in.Regime = Regime(strings.ToLower(strings.TrimSpace(string(in.Regime))))
	in.Notes = strings.TrimSpace(in.Notes)
}

// Validate checks regime, period shape and amounts.
func (in Input) Validate() error {
	if !in.Regime.Valid() {
		return internalShared.ValidationError(nil, "unknown regime %q", in.Regime)
	}
	if in.PeriodStart.IsZero() || in.PeriodEnd.IsZero() {
		return internalShared.ValidationError(ErrInvalidPeriod, "period start and end required")
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return internalShared.ValidationError(ErrInvalidPeriod, "period ends %s before it starts %s",
			in.PeriodEnd.Format("2006-01-02"), in.PeriodStart.Format("2006-01-02"))
	}
	if want := ExpectedEnd(in.Regime, in.PeriodStart); !in.PeriodEnd.Equal(want) || in.PeriodStart.Day() != 1 ||
		(in.Regime == RegimeQuarterly && (in.PeriodStart.Month()-1)%3 != 0) {
		return internalShared.ValidationError(ErrInvalidPeriod, "%s period must be a calendar %s, got %s to %s",
			in.Regime, periodNoun(in.Regime), in.PeriodStart.Format("2006-01-02"), in.PeriodEnd.Format("2006-01-02"))
	}
	return in.Amounts.Validate()
}

// Validate rejects negative or sub-cent totals.
func (a Amounts) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"collected_20", a.Collected20},
		{"collected_14", a.Collected14},
		{"collected_10", a.Collected10},
		{"collected_7", a.Collected7},
		{"deductible_immobilisations", a.DeductibleImmobilisations},
		{"deductible_charges", a.DeductibleCharges},
		{"credit_report", a.CreditReport},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return internalShared.ValidationError(ErrNegativeAmount, "%s is %s", f.name, f.value)
		}
		if !shared.HasCentPrecision(f.value) {
			return internalShared.ValidationError(shared.ErrAmountPrecision, "%s is %s", f.name, f.value)
		}
	}
	return nil
}

// ExpectedEnd returns the last day of the period starting at start.
func ExpectedEnd(regime Regime, start time.Time) time.Time {
	months := 1
	if regime == RegimeQuarterly {
		months = 3
	}
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, months, -1)
}

func periodNoun(r Regime) string {
	if r == RegimeQuarterly {
		return "quarter"
	}
	return "month"
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type amountsRequest struct {
	Collected20               decimal.Decimal `json:"collected_20"`
	Collected14               decimal.Decimal `json:"collected_14"`
	Collected10               decimal.Decimal `json:"collected_10"`
	Collected7                decimal.Decimal `json:"collected_7"`
	DeductibleImmobilisations decimal.Decimal `json:"deductible_immobilisations"`
	DeductibleCharges         decimal.Decimal `json:"deductible_charges"`
	CreditReport              decimal.Decimal `json:"credit_report"`
}

func (r amountsRequest) toAmounts() Amounts {
	return Amounts(r)
}

type declarationRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"required,datetime=2006-01-02"`
	Regime      string `json:"regime" validate:"required,oneof=monthly quarterly"`
	Notes       string `json:"notes" validate:"max=1000"`
	amountsRequest
}
