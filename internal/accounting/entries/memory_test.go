package entries

import (
	"context"
	"sort"
	"time"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/journals"
	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type memoryRepo struct {
	accounts    map[int64]accounts.Account
	journals    map[int64]journals.Journal
	fiscalYears map[int64]fiscalyears.FiscalYear
	entries     map[int64]Entry
	nextEntry   int64
	nextLine    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts:    make(map[int64]accounts.Account),
		journals:    make(map[int64]journals.Journal),
		fiscalYears: make(map[int64]fiscalyears.FiscalYear),
		entries:     make(map[int64]Entry),
	}
}

func cloneEntry(e Entry) Entry {
	e.Lines = append([]Line(nil), e.Lines...)
	return e
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, internalShared.NotFoundError(shared.ErrEntryNotFound, "id %d", id)
	}
	return cloneEntry(e), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	var matched []Entry
	for _, e := range r.entries {
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.JournalID != nil && e.JournalID != *filter.JournalID {
			continue
		}
		if filter.FiscalYearID != nil && e.FiscalYearID != *filter.FiscalYearID {
			continue
		}
		e.Lines = nil
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

// WithTx restores the entry set when fn fails.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Entry, len(r.entries))
	for id, e := range r.entries {
		snapshot[id] = cloneEntry(e)
	}
	if err := fn(ctx, r); err != nil {
		r.entries = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) AccountsByIDs(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account)
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *memoryRepo) GetJournal(ctx context.Context, id int64) (journals.Journal, error) {
	j, ok := r.journals[id]
	if !ok {
		return journals.Journal{}, internalShared.NotFoundError(shared.ErrJournalNotFound, "id %d", id)
	}
	return j, nil
}

func (r *memoryRepo) GetFiscalYearForShare(ctx context.Context, id int64) (fiscalyears.FiscalYear, error) {
	fy, ok := r.fiscalYears[id]
	if !ok {
		return fiscalyears.FiscalYear{}, internalShared.NotFoundError(shared.ErrFiscalYearNotFound, "id %d", id)
	}
	return fy, nil
}

func (r *memoryRepo) FindOpenFiscalYear(ctx context.Context, date time.Time) (fiscalyears.FiscalYear, error) {
	for _, fy := range r.fiscalYears {
		if fy.IsOpen() && fy.Contains(date) {
			return fy, nil
		}
	}
	return fiscalyears.FiscalYear{}, internalShared.NotFoundError(shared.ErrFiscalYearNotFound, "date %s", date)
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Entry, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) checkUnique(e Entry) error {
	for _, other := range r.entries {
		if other.ID == e.ID {
			continue
		}
		if other.EntryNumber == e.EntryNumber {
			return internalShared.ConflictError(shared.ErrDuplicateEntryNumber, "number %s", e.EntryNumber)
		}
		if e.SourceType != nil && other.SourceType != nil && *other.SourceType == *e.SourceType && *other.SourceID == *e.SourceID {
			return internalShared.ConflictError(shared.ErrSourceAlreadyLinked, "%s %d", *e.SourceType, *e.SourceID)
		}
	}
	return nil
}

func (r *memoryRepo) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	if err := r.checkUnique(e); err != nil {
		return Entry{}, err
	}
	r.nextEntry++
	e.ID = r.nextEntry
	e.Status = StatusDraft
	e.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.UpdatedAt = e.CreatedAt
	r.entries[e.ID] = e
	return cloneEntry(e), nil
}

func (r *memoryRepo) UpdateEntry(ctx context.Context, e Entry) (Entry, error) {
	current, ok := r.entries[e.ID]
	if !ok || !current.IsDraft() {
		return Entry{}, internalShared.NotFoundError(shared.ErrEntryNotFound, "id %d", e.ID)
	}
	if err := r.checkUnique(e); err != nil {
		return Entry{}, err
	}
	e.Status = current.Status
	e.CreatedAt = current.CreatedAt
	e.CreatedBy = current.CreatedBy
	e.Lines = current.Lines
	r.entries[e.ID] = e
	return cloneEntry(e), nil
}

func (r *memoryRepo) ReplaceLines(ctx context.Context, entryID int64, lines []Line) ([]Line, error) {
	e := r.entries[entryID]
	e.Lines = make([]Line, len(lines))
	for i, l := range lines {
		r.nextLine++
		l.ID = r.nextLine
		l.EntryID = entryID
		e.Lines[i] = l
	}
	r.entries[entryID] = e
	return append([]Line(nil), e.Lines...), nil
}

func (r *memoryRepo) MarkValidated(ctx context.Context, id, actorID int64, at time.Time) (Entry, error) {
	e := r.entries[id]
	e.Status = StatusValidated
	e.ValidatedBy = &actorID
	e.ValidatedAt = &at
	r.entries[id] = e
	return cloneEntry(e), nil
}

func (r *memoryRepo) DeleteEntry(ctx context.Context, id int64) error {
	delete(r.entries, id)
	return nil
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type countingMetrics struct {
	created, validated int
	rejected           map[string]int
}

func (m *countingMetrics) EntryCreated()   { m.created++ }
func (m *countingMetrics) EntryValidated() { m.validated++ }
func (m *countingMetrics) EntryRejected(reason string) {
	if m.rejected == nil {
		m.rejected = make(map[string]int)
	}
	m.rejected[reason]++
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return c.err
}
