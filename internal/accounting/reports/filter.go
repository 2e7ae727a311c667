package reports

import (
	"strconv"
	"time"

	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Filter narrows the validated lines a report folds over.
type Filter struct {
	FiscalYearID *int64
	From         *time.Time
	To           *time.Time
}

// Validate checks the date window ordering.
func (f Filter) Validate() error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return internalShared.ValidationError(nil, "to %s before from %s", f.To.Format("2006-01-02"), f.From.Format("2006-01-02"))
	}
	return nil
}

func (f Filter) keyParts() []string {
	fy, from, to := "all", "-", "-"
	if f.FiscalYearID != nil {
		fy = strconv.FormatInt(*f.FiscalYearID, 10)
	}
	if f.From != nil {
		from = f.From.Format("20060102")
	}
	if f.To != nil {
		to = f.To.Format("20060102")
	}
	return []string{fy, from, to}
}
