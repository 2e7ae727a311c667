package tva

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitops/fleet-ledger/internal/platform/db"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Repository persists TVA declarations.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Declaration, error)
	Get(ctx context.Context, id int64) (Declaration, error)
	Insert(ctx context.Context, d Declaration) (Declaration, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the locked reads and writes of a declaration transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Declaration, error)
	Update(ctx context.Context, d Declaration) (Declaration, error)
	Delete(ctx context.Context, id int64) error
	MarkSubmitted(ctx context.Context, id, actorID int64, at time.Time) (Declaration, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const declarationColumns = `id, period_start, period_end, regime, collected_20, collected_14, collected_10, collected_7,
deductible_immobilisations, deductible_charges, credit_report, tva_due, tva_to_pay, status, notes,
submitted_at, submitted_by, created_at, updated_at`

func scanDeclaration(row pgx.Row) (Declaration, error) {
	var d Declaration
	err := row.Scan(&d.ID, &d.PeriodStart, &d.PeriodEnd, &d.Regime, &d.Collected20, &d.Collected14, &d.Collected10,
		&d.Collected7, &d.DeductibleImmobilisations, &d.DeductibleCharges, &d.CreditReport, &d.TVADue, &d.TVAToPay,
		&d.Status, &d.Notes, &d.SubmittedAt, &d.SubmittedBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func declarationNotFound(err error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return internalShared.NotFoundError(ErrDeclarationNotFound, "id %d", id)
	}
	return err
}

func periodConflict(err error, d Declaration) error {
	if db.IsUniqueViolation(err, "uq_tva_declarations_period") {
		return internalShared.ConflictError(ErrDuplicateDeclaration, "%s period starting %s", d.Regime, d.PeriodStart.Format("2006-01-02"))
	}
	return err
}

// List returns declarations newest period first.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Declaration, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		conds = append(conds, fmt.Sprintf("EXTRACT(YEAR FROM period_start) = $%d", len(args)))
	}
	query := `SELECT ` + declarationColumns + ` FROM tva_declarations`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	rows, err := r.db.Query(ctx, query+` ORDER BY period_start DESC, regime`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Declaration, error) {
	d, err := scanDeclaration(r.db.QueryRow(ctx, `SELECT `+declarationColumns+` FROM tva_declarations WHERE id=$1`, id))
	if err != nil {
		return Declaration{}, declarationNotFound(err, id)
	}
	return d, nil
}

func (r *repository) Insert(ctx context.Context, d Declaration) (Declaration, error) {
	inserted, err := scanDeclaration(r.db.QueryRow(ctx, `INSERT INTO tva_declarations (period_start, period_end, regime,
collected_20, collected_14, collected_10, collected_7, deductible_immobilisations, deductible_charges, credit_report,
tva_due, tva_to_pay, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'draft',$13) RETURNING `+declarationColumns,
		d.PeriodStart, d.PeriodEnd, d.Regime, d.Collected20, d.Collected14, d.Collected10, d.Collected7,
		d.DeductibleImmobilisations, d.DeductibleCharges, d.CreditReport, d.TVADue, d.TVAToPay, d.Notes))
	if err != nil {
		return Declaration{}, periodConflict(err, d)
	}
	return inserted, nil
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

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Declaration, error) {
	d, err := scanDeclaration(r.tx.QueryRow(ctx, `SELECT `+declarationColumns+` FROM tva_declarations WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Declaration{}, declarationNotFound(err, id)
	}
	return d, nil
}

func (r *txRepository) Update(ctx context.Context, d Declaration) (Declaration, error) {
	updated, err := scanDeclaration(r.tx.QueryRow(ctx, `UPDATE tva_declarations SET period_start=$2, period_end=$3, regime=$4,
collected_20=$5, collected_14=$6, collected_10=$7, collected_7=$8, deductible_immobilisations=$9, deductible_charges=$10,
credit_report=$11, tva_due=$12, tva_to_pay=$13, notes=$14, updated_at=NOW()
WHERE id=$1 AND status='draft' RETURNING `+declarationColumns,
		d.ID, d.PeriodStart, d.PeriodEnd, d.Regime, d.Collected20, d.Collected14, d.Collected10, d.Collected7,
		d.DeductibleImmobilisations, d.DeductibleCharges, d.CreditReport, d.TVADue, d.TVAToPay, d.Notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Declaration{}, internalShared.ImmutabilityError(ErrDeclarationSubmitted, "id %d", d.ID)
		}
		return Declaration{}, periodConflict(err, d)
	}
	return updated, nil
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM tva_declarations WHERE id=$1 AND status='draft'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return internalShared.ImmutabilityError(ErrDeclarationSubmitted, "id %d", id)
	}
	return nil
}

func (r *txRepository) MarkSubmitted(ctx context.Context, id, actorID int64, at time.Time) (Declaration, error) {
	var submittedBy *int64
	if actorID > 0 {
		submittedBy = &actorID
	}
	d, err := scanDeclaration(r.tx.QueryRow(ctx, `UPDATE tva_declarations SET status='submitted', submitted_at=$2,
submitted_by=$3, updated_at=NOW() WHERE id=$1 AND status='draft' RETURNING `+declarationColumns, id, at, submittedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Declaration{}, internalShared.ConflictError(ErrDeclarationSubmitted, "id %d", id)
		}
		return Declaration{}, err
	}
	return d, nil
}
