package fiscalyears

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	"github.com/transitops/fleet-ledger/internal/platform/db"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type Repository interface {
	List(ctx context.Context) ([]FiscalYear, error)
	Get(ctx context.Context, id int64) (FiscalYear, error)
	FindOpenByDate(ctx context.Context, date time.Time) (FiscalYear, error)
	RangeConflict(ctx context.Context, start, end time.Time) (bool, error)
	Insert(ctx context.Context, in CreateInput) (FiscalYear, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (FiscalYear, error)
	MarkClosed(ctx context.Context, id, actorID int64, at time.Time) (FiscalYear, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const fiscalYearColumns = `id, name, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanFiscalYear(row pgx.Row) (FiscalYear, error) {
	var fy FiscalYear
	err := row.Scan(&fy.ID, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.Status, &fy.ClosedAt, &fy.ClosedBy, &fy.CreatedAt, &fy.UpdatedAt)
	return fy, err
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return internalShared.NotFoundError(shared.ErrFiscalYearNotFound, format, args...)
	}
	return err
}

func (r *repository) List(ctx context.Context) ([]FiscalYear, error) {
	rows, err := r.db.Query(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []FiscalYear
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, fy)
	}
	return years, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (FiscalYear, error) {
	fy, err := scanFiscalYear(r.db.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE id=$1`, id))
	if err != nil {
		return FiscalYear{}, notFound(err, "id %d", id)
	}
	return fy, nil
}

// FindOpenByDate returns the open fiscal year covering the supplied date.
func (r *repository) FindOpenByDate(ctx context.Context, date time.Time) (FiscalYear, error) {
	fy, err := scanFiscalYear(r.db.QueryRow(ctx, `SELECT `+fiscalYearColumns+`
FROM fiscal_years WHERE status='open' AND $1::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, date))
	if err != nil {
		return FiscalYear{}, notFound(err, "no open fiscal year covers %s", date.Format("2006-01-02"))
	}
	return fy, nil
}

// RangeConflict reports whether a fiscal year already overlaps the provided range.
func (r *repository) RangeConflict(ctx context.Context, start, end time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fiscal_years
WHERE daterange(start_date, end_date, '[]') && daterange($1::date, $2::date, '[]'))`, start, end).Scan(&exists)
	return exists, err
}

func (r *repository) Insert(ctx context.Context, in CreateInput) (FiscalYear, error) {
	fy, err := scanFiscalYear(r.db.QueryRow(ctx, `INSERT INTO fiscal_years (name, start_date, end_date)
VALUES ($1,$2,$3) RETURNING `+fiscalYearColumns, in.Name, in.StartDate, in.EndDate))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "ex_fiscal_years_range" {
			return FiscalYear{}, internalShared.ConflictError(shared.ErrFiscalYearOverlap, "%s", in.Name)
		}
		return FiscalYear{}, err
	}
	return fy, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (FiscalYear, error) {
	fy, err := scanFiscalYear(r.tx.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return FiscalYear{}, notFound(err, "id %d", id)
	}
	return fy, nil
}

func (r *txRepository) MarkClosed(ctx context.Context, id, actorID int64, at time.Time) (FiscalYear, error) {
	var closedBy *int64
	if actorID > 0 {
		closedBy = &actorID
	}
	fy, err := scanFiscalYear(r.tx.QueryRow(ctx, `UPDATE fiscal_years SET status='closed', closed_at=$2, closed_by=$3, updated_at=NOW()
WHERE id=$1 RETURNING `+fiscalYearColumns, id, at, closedBy))
	if err != nil {
		return FiscalYear{}, notFound(err, "id %d", id)
	}
	return fy, nil
}
