package tva

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

var (
	// ErrDeclarationNotFound indicates missing declaration.
	ErrDeclarationNotFound = errors.New("tva: declaration not found")
	// ErrDuplicateDeclaration indicates a declaration exists for the regime and period.
	ErrDuplicateDeclaration = errors.New("tva: declaration already exists for period")
	// ErrDeclarationSubmitted indicates a change to a submitted declaration.
	ErrDeclarationSubmitted = errors.New("tva: declaration already submitted")
	// ErrInvalidPeriod indicates the period does not match the regime.
	ErrInvalidPeriod = errors.New("tva: invalid declaration period")
	// ErrNegativeAmount indicates a bracket total below zero.
	ErrNegativeAmount = errors.New("tva: amounts must not be negative")
)

// Regime is the filing frequency.
type Regime string

const (
	RegimeMonthly   Regime = "monthly"
	RegimeQuarterly Regime = "quarterly"
)

// Valid reports whether r is a known regime.
func (r Regime) Valid() bool {
	return r == RegimeMonthly || r == RegimeQuarterly
}

// Status enumerates declaration lifecycle states.
type Status string

const (
	StatusDraft     Status = internalShared.StatusDraft
	StatusSubmitted Status = internalShared.StatusSubmitted
)

// Amounts are the caller supplied totals of a period.
type Amounts struct {
	Collected20               decimal.Decimal `json:"collected_20"`
	Collected14               decimal.Decimal `json:"collected_14"`
	Collected10               decimal.Decimal `json:"collected_10"`
	Collected7                decimal.Decimal `json:"collected_7"`
	DeductibleImmobilisations decimal.Decimal `json:"deductible_immobilisations"`
	DeductibleCharges         decimal.Decimal `json:"deductible_charges"`
	CreditReport              decimal.Decimal `json:"credit_report"`
}

// Declaration is a periodic TVA return. TVADue and TVAToPay are stored;
// NewCreditReport is recomputed for display on every read.
type Declaration struct {
	ID          int64     `json:"id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Regime      Regime    `json:"regime"`
	Amounts
	TVADue          decimal.Decimal `json:"tva_due"`
	TVAToPay        decimal.Decimal `json:"tva_to_pay"`
	NewCreditReport decimal.Decimal `json:"new_credit_report"`
	Status          Status          `json:"status"`
	Notes           string          `json:"notes"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	SubmittedBy     *int64          `json:"submitted_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ListFilter narrows declaration listings.
type ListFilter struct {
	Status *Status
	Year   *int
}
