package entries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/journals"
	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	"github.com/transitops/fleet-ledger/internal/platform/db"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Repository persists entries and their lines.
type Repository interface {
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the reads and writes of one entry transaction.
type TxRepository interface {
	AccountsByIDs(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	GetJournal(ctx context.Context, id int64) (journals.Journal, error)
	// GetFiscalYearForShare locks the year against a concurrent close.
	GetFiscalYearForShare(ctx context.Context, id int64) (fiscalyears.FiscalYear, error)
	FindOpenFiscalYear(ctx context.Context, date time.Time) (fiscalyears.FiscalYear, error)
	GetForUpdate(ctx context.Context, id int64) (Entry, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) (Entry, error)
	ReplaceLines(ctx context.Context, entryID int64, lines []Line) ([]Line, error)
	MarkValidated(ctx context.Context, id, actorID int64, at time.Time) (Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, entry_number, entry_date, journal_id, fiscal_year_id, description, reference, source_type, source_id,
status, total_debit, total_credit, created_by, validated_by, validated_at, created_at, updated_at`

const lineColumns = `id, entry_id, position, account_id, label, debit, credit, tva_rate, tva_amount`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.JournalID, &e.FiscalYearID, &e.Description, &e.Reference,
		&e.SourceType, &e.SourceID, &e.Status, &e.TotalDebit, &e.TotalCredit, &e.CreatedBy, &e.ValidatedBy,
		&e.ValidatedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func entryNotFound(err error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return internalShared.NotFoundError(shared.ErrEntryNotFound, "id %d", id)
	}
	return err
}

func loadLines(ctx context.Context, q querier, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM entry_lines WHERE entry_id=$1 ORDER BY position, id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.Position, &l.AccountID, &l.Label, &l.Debit, &l.Credit, &l.TVARate, &l.TVAAmount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func loadEntry(ctx context.Context, q querier, id int64, lock string) (Entry, error) {
	e, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id=$1`+lock, id))
	if err != nil {
		return Entry{}, entryNotFound(err, id)
	}
	if e.Lines, err = loadLines(ctx, q, id); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Entry, error) {
	return loadEntry(ctx, r.db, id, "")
}

// List returns headers only, newest first, along with the unpaged count.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.JournalID != nil {
		args = append(args, *filter.JournalID)
		conds = append(conds, fmt.Sprintf("journal_id = $%d", len(args)))
	}
	if filter.FiscalYearID != nil {
		args = append(args, *filter.FiscalYearID)
		conds = append(conds, fmt.Sprintf("fiscal_year_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT `+entryColumns+` FROM entries%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// WithTx executes fn within a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) AccountsByIDs(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, class, nature, type, parent_code, is_active, created_at, updated_at
FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Class, &a.Nature, &a.Type, &a.ParentCode, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		found[a.ID] = a
	}
	return found, rows.Err()
}

func (r *txRepository) GetJournal(ctx context.Context, id int64) (journals.Journal, error) {
	var j journals.Journal
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, type, created_at FROM journals WHERE id=$1`, id).
		Scan(&j.ID, &j.Code, &j.Name, &j.Type, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return journals.Journal{}, internalShared.NotFoundError(shared.ErrJournalNotFound, "id %d", id)
	}
	return j, err
}

const fiscalYearColumns = `id, name, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanFiscalYear(row pgx.Row) (fiscalyears.FiscalYear, error) {
	var fy fiscalyears.FiscalYear
	err := row.Scan(&fy.ID, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.Status, &fy.ClosedAt, &fy.ClosedBy, &fy.CreatedAt, &fy.UpdatedAt)
	return fy, err
}

func (r *txRepository) GetFiscalYearForShare(ctx context.Context, id int64) (fiscalyears.FiscalYear, error) {
	fy, err := scanFiscalYear(r.tx.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE id=$1 FOR SHARE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return fiscalyears.FiscalYear{}, internalShared.NotFoundError(shared.ErrFiscalYearNotFound, "id %d", id)
	}
	return fy, err
}

func (r *txRepository) FindOpenFiscalYear(ctx context.Context, date time.Time) (fiscalyears.FiscalYear, error) {
	fy, err := scanFiscalYear(r.tx.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years
WHERE status='open' AND $1::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR SHARE`, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return fiscalyears.FiscalYear{}, internalShared.NotFoundError(shared.ErrFiscalYearNotFound,
			"no open fiscal year covers %s", date.Format("2006-01-02"))
	}
	return fy, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Entry, error) {
	return loadEntry(ctx, r.tx, id, " FOR UPDATE")
}

func writeConflict(err error, e Entry) error {
	switch {
	case db.IsUniqueViolation(err, "uq_entries_number"):
		return internalShared.ConflictError(shared.ErrDuplicateEntryNumber, "number %s", e.EntryNumber)
	case db.IsUniqueViolation(err, "uq_entries_source"):
		return internalShared.ConflictError(shared.ErrSourceAlreadyLinked, "%s %d", derefString(e.SourceType), derefInt(e.SourceID))
	}
	return err
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	var createdBy *int64
	if e.CreatedBy != nil && *e.CreatedBy > 0 {
		createdBy = e.CreatedBy
	}
	inserted, err := scanEntry(r.tx.QueryRow(ctx, `INSERT INTO entries (entry_number, entry_date, journal_id, fiscal_year_id, description,
reference, source_type, source_id, status, total_debit, total_credit, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'draft',$9,$10,$11) RETURNING `+entryColumns,
		e.EntryNumber, e.EntryDate, e.JournalID, e.FiscalYearID, e.Description, e.Reference, e.SourceType, e.SourceID,
		e.TotalDebit, e.TotalCredit, createdBy))
	if err != nil {
		return Entry{}, writeConflict(err, e)
	}
	return inserted, nil
}

func (r *txRepository) UpdateEntry(ctx context.Context, e Entry) (Entry, error) {
	updated, err := scanEntry(r.tx.QueryRow(ctx, `UPDATE entries SET entry_number=$2, entry_date=$3, journal_id=$4, fiscal_year_id=$5,
description=$6, reference=$7, total_debit=$8, total_credit=$9, updated_at=NOW()
WHERE id=$1 AND status='draft' RETURNING `+entryColumns,
		e.ID, e.EntryNumber, e.EntryDate, e.JournalID, e.FiscalYearID, e.Description, e.Reference, e.TotalDebit, e.TotalCredit))
	if err != nil {
		return Entry{}, writeConflict(entryNotFound(err, e.ID), e)
	}
	return updated, nil
}

// ReplaceLines drops the stored lines of the entry and writes lines in order.
func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []Line) ([]Line, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM entry_lines WHERE entry_id=$1`, entryID); err != nil {
		return nil, err
	}
	out := make([]Line, len(lines))
	for i, l := range lines {
		l.EntryID = entryID
		err := r.tx.QueryRow(ctx, `INSERT INTO entry_lines (entry_id, position, account_id, label, debit, credit, tva_rate, tva_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`, entryID, l.Position, l.AccountID, l.Label, l.Debit, l.Credit, l.TVARate, l.TVAAmount).Scan(&l.ID)
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}

func (r *txRepository) MarkValidated(ctx context.Context, id, actorID int64, at time.Time) (Entry, error) {
	var validatedBy *int64
	if actorID > 0 {
		validatedBy = &actorID
	}
	e, err := scanEntry(r.tx.QueryRow(ctx, `UPDATE entries SET status='validated', validated_by=$2, validated_at=$3, updated_at=NOW()
WHERE id=$1 AND status='draft' RETURNING `+entryColumns, id, validatedBy, at))
	if err != nil {
		return Entry{}, entryNotFound(err, id)
	}
	return e, nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM entries WHERE id=$1 AND status='draft'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return internalShared.NotFoundError(shared.ErrEntryNotFound, "id %d", id)
	}
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
