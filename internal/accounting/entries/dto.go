package entries

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// LineInput describes one line of an entry being written.
type LineInput struct {
	AccountID int64
	Label     string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	TVARate   int
	// TVAAmount defaults to the rate applied to debit plus credit when nil.
	TVAAmount *decimal.Decimal
}

// CreateInput is the header and lines of a draft entry. Totals are always
// derived from Lines.
type CreateInput struct {
	EntryNumber string
	EntryDate   time.Time
	JournalID   int64
	// FiscalYearID resolves to the open fiscal year covering EntryDate when zero.
	FiscalYearID int64
	Description  string
	Reference    *string
	SourceType   *string
	SourceID     *int64
	ActorID      int64
	Lines        []LineInput
}

// ReverseInput describes the offsetting entry created for a validated entry.
type ReverseInput struct {
	EntryNumber string
	// EntryDate defaults to the reversed entry's date.
	EntryDate   *time.Time
	Description string
	ActorID     int64
}

func (in *CreateInput) normalize() {
	in.EntryNumber = strings.TrimSpace(in.EntryNumber)
	in.Description = strings.TrimSpace(in.Description)
	in.Reference = trimOptional(in.Reference)
	in.SourceType = trimOptional(in.SourceType)
	if !in.EntryDate.IsZero() {
		y, m, d := in.EntryDate.Date()
		in.EntryDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	for i := range in.Lines {
		in.Lines[i].Label = strings.TrimSpace(in.Lines[i].Label)
	}
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// checkShape runs the input-only checks: line count first, then each line,
// then the header.
func (in CreateInput) checkShape() error {
	if len(in.Lines) < 2 {
		return internalShared.ValidationError(shared.ErrTooFewLines, "got %d", len(in.Lines))
	}
	for i, line := range in.Lines {
		if err := line.check(i + 1); err != nil {
			return err
		}
	}
	if in.EntryNumber == "" {
		return internalShared.ValidationError(nil, "entry number required")
	}
	if in.EntryDate.IsZero() {
		return internalShared.ValidationError(nil, "entry date required")
	}
	if in.JournalID <= 0 {
		return internalShared.ValidationError(nil, "journal required")
	}
	if (in.SourceType == nil) != (in.SourceID == nil) {
		return internalShared.ValidationError(nil, "source type and source id go together")
	}
	return nil
}

func (l LineInput) check(pos int) error {
	if l.AccountID <= 0 {
		return internalShared.ValidationError(shared.ErrAccountRequired, "line %d", pos)
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return internalShared.ValidationError(shared.ErrNegativeAmount, "line %d debit %s credit %s", pos, l.Debit, l.Credit)
	}
	if !shared.HasCentPrecision(l.Debit) || !shared.HasCentPrecision(l.Credit) {
		return internalShared.ValidationError(shared.ErrAmountPrecision, "line %d debit %s credit %s", pos, l.Debit, l.Credit)
	}
	if l.Debit.IsZero() && l.Credit.IsZero() {
		return internalShared.ValidationError(shared.ErrEmptyLine, "line %d", pos)
	}
	if !shared.ValidTVARate(l.TVARate) {
		return internalShared.ValidationError(shared.ErrInvalidTVARate, "line %d rate %d", pos, l.TVARate)
	}
	if l.TVAAmount != nil {
		if l.TVAAmount.IsNegative() {
			return internalShared.ValidationError(shared.ErrNegativeAmount, "line %d tva amount %s", pos, l.TVAAmount)
		}
		if !shared.HasCentPrecision(*l.TVAAmount) {
			return internalShared.ValidationError(shared.ErrAmountPrecision, "line %d tva amount %s", pos, l.TVAAmount)
		}
	}
	return nil
}

func (in CreateInput) buildLines() []Line {
	lines := make([]Line, len(in.Lines))
	for i, l := range in.Lines {
		tva := shared.TVAAmount(l.Debit.Add(l.Credit), l.TVARate)
		if l.TVAAmount != nil {
			tva = *l.TVAAmount
		}
		lines[i] = Line{
			Position:  i + 1,
			AccountID: l.AccountID,
			Label:     l.Label,
			Debit:     l.Debit,
			Credit:    l.Credit,
			TVARate:   l.TVARate,
			TVAAmount: tva,
		}
	}
	return lines
}

// reversalOf builds the offsetting input for a validated entry.
func reversalOf(original Entry, in ReverseInput) CreateInput {
	out := CreateInput{
		EntryNumber:  in.EntryNumber,
		EntryDate:    original.EntryDate,
		JournalID:    original.JournalID,
		FiscalYearID: original.FiscalYearID,
		Description:  in.Description,
		Reference:    &original.EntryNumber,
		SourceType:   stringPtr(SourceReversal),
		SourceID:     &original.ID,
		ActorID:      in.ActorID,
		Lines:        make([]LineInput, len(original.Lines)),
	}
	if in.EntryDate != nil {
		out.EntryDate = *in.EntryDate
		out.FiscalYearID = 0
	}
	if out.Description == "" {
		out.Description = "Reversal of " + original.EntryNumber
	}
	for i, l := range original.Lines {
		tva := l.TVAAmount
		out.Lines[i] = LineInput{
			AccountID: l.AccountID,
			Label:     l.Label,
			Debit:     l.Credit,
			Credit:    l.Debit,
			TVARate:   l.TVARate,
			TVAAmount: &tva,
		}
	}
	return out
}

func stringPtr(v string) *string {
	return &v
}

type lineRequest struct {
	AccountID int64            `json:"account_id" validate:"required,gt=0"`
	Label     string           `json:"label" validate:"max=255"`
	Debit     decimal.Decimal  `json:"debit"`
	Credit    decimal.Decimal  `json:"credit"`
	TVARate   int              `json:"tva_rate"`
	TVAAmount *decimal.Decimal `json:"tva_amount,omitempty"`
}

type entryRequest struct {
	EntryNumber  string        `json:"entry_number" validate:"required,max=40"`
	EntryDate    string        `json:"entry_date" validate:"required,datetime=2006-01-02"`
	JournalID    int64         `json:"journal_id" validate:"required,gt=0"`
	FiscalYearID int64         `json:"fiscal_year_id" validate:"gte=0"`
	Description  string        `json:"description" validate:"max=500"`
	Reference    *string       `json:"reference,omitempty" validate:"omitempty,max=100"`
	Lines        []lineRequest `json:"lines" validate:"dive"`
}

func (r entryRequest) toInput(date time.Time, actorID int64) CreateInput {
	in := CreateInput{
		EntryNumber:  r.EntryNumber,
		EntryDate:    date,
		JournalID:    r.JournalID,
		FiscalYearID: r.FiscalYearID,
		Description:  r.Description,
		Reference:    r.Reference,
		ActorID:      actorID,
		Lines:        make([]LineInput, len(r.Lines)),
	}
	for i, l := range r.Lines {
		in.Lines[i] = LineInput{
			AccountID: l.AccountID,
			Label:     l.Label,
			Debit:     l.Debit,
			Credit:    l.Credit,
			TVARate:   l.TVARate,
			TVAAmount: l.TVAAmount,
		}
	}
	return in
}

type reverseRequest struct {
	EntryNumber string `json:"entry_number" validate:"required,max=40"`
	EntryDate   string `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=500"`
}
