package fiscalyears

import (
	"time"

	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Status enumerates valid fiscal year states.
type Status string

const (
	StatusOpen   Status = internalShared.StatusOpen
	StatusClosed Status = internalShared.StatusClosed
)

// FiscalYear represents a fiscal window entries are dated within.
type FiscalYear struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Status    Status     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contains reports whether the calendar day of date lies in [StartDate, EndDate].
func (fy FiscalYear) Contains(date time.Time) bool {
	day := truncateDay(date)
	return !day.Before(truncateDay(fy.StartDate)) && !day.After(truncateDay(fy.EndDate))
}

// IsOpen reports whether entries may still be written against the year.
func (fy FiscalYear) IsOpen() bool {
	return fy.Status == StatusOpen
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateInput describes a new fiscal year.
type CreateInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

// Validate checks name and range ordering.
func (in CreateInput) Validate() error {
	if in.Name == "" {
		return internalShared.ValidationError(nil, "fiscal year name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return internalShared.ValidationError(nil, "fiscal year start and end dates required")
	}
	if truncateDay(in.EndDate).Before(truncateDay(in.StartDate)) {
		return internalShared.ValidationError(nil, "fiscal year ends %s before it starts %s",
			in.EndDate.Format("2006-01-02"), in.StartDate.Format("2006-01-02"))
	}
	return nil
}

type createFiscalYearRequest struct {
	Name      string `json:"name" validate:"required,max=60"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}
