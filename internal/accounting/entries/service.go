package entries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// AuditPort records entry lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// MetricsPort counts entry outcomes.
type MetricsPort interface {
	EntryCreated()
	EntryValidated()
	EntryRejected(reason string)
}

// CacheInvalidator drops cached reports once the validated set changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service writes entries and drives them from draft to validated.
type Service struct {
	repo        Repository
	audit       AuditPort
	metrics     MetricsPort
	invalidator CacheInvalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the entry service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, logger: slog.Default(), now: time.Now}
}

// WithLogger sets the logger for post-commit failures.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches outcome counters.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

// WithInvalidator attaches the report cache invalidation hook.
func (s *Service) WithInvalidator(inv CacheInvalidator) {
	s.invalidator = inv
}

func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.Get(ctx, id)
}

// List returns entry headers with the total matching count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, internalShared.ValidationError(nil, "unknown status %q", *filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Create checks the input and stores a draft entry with its lines.
func (s *Service) Create(ctx context.Context, in CreateInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header, lines, err := s.prepare(ctx, tx, in)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, header)
		if err != nil {
			return err
		}
		if inserted.Lines, err = tx.ReplaceLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		s.rejected(err)
		return Entry{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryCreated()
	}
	s.record(ctx, in.ActorID, "entry.create", entry, map[string]any{
		"number":       entry.EntryNumber,
		"total_debit":  shared.Money(entry.TotalDebit),
		"total_credit": shared.Money(entry.TotalCredit),
	})
	return entry, nil
}

// Update replaces header and lines of a draft through the same checks as Create.
func (s *Service) Update(ctx context.Context, id int64, in CreateInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsDraft() {
			return internalShared.ImmutabilityError(shared.ErrEntryValidated, "entry %s", current.EntryNumber)
		}
		in.SourceType, in.SourceID = current.SourceType, current.SourceID
		header, lines, err := s.prepare(ctx, tx, in)
		if err != nil {
			return err
		}
		header.ID = id
		updated, err := tx.UpdateEntry(ctx, header)
		if err != nil {
			return err
		}
		if updated.Lines, err = tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		entry = updated
		return nil
	})
	if err != nil {
		s.rejected(err)
		return Entry{}, err
	}
	s.record(ctx, in.ActorID, "entry.update", entry, map[string]any{"number": entry.EntryNumber})
	return entry, nil
}

// Validate moves a draft to validated after re-checking the stored lines.
func (s *Service) Validate(ctx context.Context, id, actorID int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := internalShared.ValidateTransition(string(current.Status), string(StatusValidated)); err != nil {
			return internalShared.ConflictError(shared.ErrEntryValidated, "entry %s", current.EntryNumber)
		}
		if len(current.Lines) < 2 {
			return internalShared.ValidationError(shared.ErrTooFewLines, "entry %s has %d", current.EntryNumber, len(current.Lines))
		}
		if err := checkAccounts(ctx, tx, current.Lines); err != nil {
			return err
		}
		debit, credit := Totals(current.Lines)
		if err := checkBalance(debit, credit); err != nil {
			return err
		}
		if !debit.Equal(current.TotalDebit) || !credit.Equal(current.TotalCredit) {
			return internalShared.ValidationError(shared.ErrTotalsMismatch, "header debit %s credit %s, lines debit %s credit %s",
				shared.Money(current.TotalDebit), shared.Money(current.TotalCredit), shared.Money(debit), shared.Money(credit))
		}
		fy, err := tx.GetFiscalYearForShare(ctx, current.FiscalYearID)
		if err != nil {
			return err
		}
		if err := checkFiscalYear(fy, current.EntryDate); err != nil {
			return err
		}
		validated, err := tx.MarkValidated(ctx, id, actorID, s.now())
		if err != nil {
			return err
		}
		validated.Lines = current.Lines
		entry = validated
		return nil
	})
	if err != nil {
		s.rejected(err)
		return Entry{}, err
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Error("report cache invalidation failed",
				slog.Int64("entry_id", entry.ID), slog.String("number", entry.EntryNumber), slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.EntryValidated()
	}
	s.record(ctx, actorID, "entry.validate", entry, map[string]any{
		"number":       entry.EntryNumber,
		"total_debit":  shared.Money(entry.TotalDebit),
		"total_credit": shared.Money(entry.TotalCredit),
	})
	return entry, nil
}

// Delete removes a draft with its lines.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	var removed Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsDraft() {
			return internalShared.ImmutabilityError(shared.ErrEntryValidated, "entry %s", current.EntryNumber)
		}
		removed = current
		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "entry.delete", removed, map[string]any{"number": removed.EntryNumber})
	return nil
}

// Reverse drafts the offsetting entry of a validated entry. The reversal is
// linked to the original through its source and must be validated itself.
func (s *Service) Reverse(ctx context.Context, id int64, in ReverseInput) (Entry, error) {
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if original.Status != StatusValidated {
			return internalShared.ConflictError(shared.ErrEntryNotValidated, "entry %s", original.EntryNumber)
		}
		header, lines, err := s.prepare(ctx, tx, reversalOf(original, in))
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, header)
		if err != nil {
			return err
		}
		if inserted.Lines, err = tx.ReplaceLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		s.rejected(err)
		return Entry{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryCreated()
	}
	s.record(ctx, in.ActorID, "entry.reverse", reversal, map[string]any{
		"number":   reversal.EntryNumber,
		"reverses": id,
	})
	return reversal, nil
}

// prepare runs the ordered write checks and returns the header and lines to
// store. Totals come from the lines only.
func (s *Service) prepare(ctx context.Context, tx TxRepository, in CreateInput) (Entry, []Line, error) {
	in.normalize()
	if err := in.checkShape(); err != nil {
		return Entry{}, nil, err
	}
	lines := in.buildLines()
	if err := checkAccounts(ctx, tx, lines); err != nil {
		return Entry{}, nil, err
	}
	debit, credit := Totals(lines)
	if err := checkBalance(debit, credit); err != nil {
		return Entry{}, nil, err
	}
	if _, err := tx.GetJournal(ctx, in.JournalID); err != nil {
		return Entry{}, nil, err
	}
	var (
		fy  fiscalyears.FiscalYear
		err error
	)
	if in.FiscalYearID > 0 {
		fy, err = tx.GetFiscalYearForShare(ctx, in.FiscalYearID)
	} else {
		fy, err = tx.FindOpenFiscalYear(ctx, in.EntryDate)
	}
	if err != nil {
		return Entry{}, nil, err
	}
	if err := checkFiscalYear(fy, in.EntryDate); err != nil {
		return Entry{}, nil, err
	}
	var createdBy *int64
	if in.ActorID > 0 {
		actor := in.ActorID
		createdBy = &actor
	}
	header := Entry{
		EntryNumber:  in.EntryNumber,
		EntryDate:    in.EntryDate,
		JournalID:    in.JournalID,
		FiscalYearID: fy.ID,
		Description:  in.Description,
		Reference:    in.Reference,
		SourceType:   in.SourceType,
		SourceID:     in.SourceID,
		Status:       StatusDraft,
		TotalDebit:   debit,
		TotalCredit:  credit,
		CreatedBy:    createdBy,
	}
	return header, lines, nil
}

func checkAccounts(ctx context.Context, tx TxRepository, lines []Line) error {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; !ok {
			seen[l.AccountID] = struct{}{}
			ids = append(ids, l.AccountID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	found, err := tx.AccountsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i, l := range lines {
		acc, ok := found[l.AccountID]
		if !ok {
			return internalShared.NotFoundError(shared.ErrAccountNotFound, "line %d account %d", i+1, l.AccountID)
		}
		if acc.Type != accounts.TypeDetail {
			return internalShared.ValidationError(shared.ErrAccountNotPostable, "line %d account %s is a title account", i+1, acc.Code)
		}
		if !acc.IsActive {
			return internalShared.ValidationError(shared.ErrAccountInactive, "line %d account %s", i+1, acc.Code)
		}
	}
	return nil
}

func checkBalance(debit, credit decimal.Decimal) error {
	if shared.Balanced(debit, credit) {
		return nil
	}
	return internalShared.ValidationError(shared.ErrUnbalanced, "debit %s credit %s difference %s",
		shared.Money(debit), shared.Money(credit), shared.Money(debit.Sub(credit).Abs()))
}

func checkFiscalYear(fy fiscalyears.FiscalYear, date time.Time) error {
	if !fy.IsOpen() {
		return internalShared.ValidationError(shared.ErrFiscalYearClosed, "%s", fy.Name)
	}
	if !fy.Contains(date) {
		return internalShared.ValidationError(shared.ErrDateOutOfRange, "%s outside %s (%s to %s)",
			date.Format("2006-01-02"), fy.Name, fy.StartDate.Format("2006-01-02"), fy.EndDate.Format("2006-01-02"))
	}
	return nil
}

var rejectReasons = []struct {
	cause  error
	reason string
}{
	{shared.ErrTooFewLines, "too_few_lines"},
	{shared.ErrUnbalanced, "unbalanced"},
	{shared.ErrAccountNotPostable, "account_not_postable"},
	{shared.ErrAccountInactive, "account_inactive"},
	{shared.ErrAccountNotFound, "account_not_found"},
	{shared.ErrFiscalYearClosed, "fiscal_year_closed"},
	{shared.ErrDateOutOfRange, "date_out_of_range"},
	{shared.ErrDuplicateEntryNumber, "duplicate_number"},
	{shared.ErrTotalsMismatch, "totals_mismatch"},
}

// rejected counts domain failures; infrastructure errors are not rejections.
func (s *Service) rejected(err error) {
	kind := internalShared.KindOf(err)
	if s.metrics == nil || kind == nil {
		return
	}
	for _, r := range rejectReasons {
		if errors.Is(err, r.cause) {
			s.metrics.EntryRejected(r.reason)
			return
		}
	}
	s.metrics.EntryRejected(strings.ReplaceAll(kind.Error(), " ", "_"))
}

func (s *Service) record(ctx context.Context, actorID int64, action string, e Entry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "entry",
		EntityID: fmt.Sprintf("%d", e.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
