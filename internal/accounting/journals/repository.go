package journals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	"github.com/transitops/fleet-ledger/internal/platform/db"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	List(ctx context.Context) ([]Journal, error)
	Get(ctx context.Context, id int64) (Journal, error)
	Insert(ctx context.Context, in CreateInput) (Journal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Journal, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, type, created_at FROM journals ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var journals []Journal
	for rows.Next() {
		var j Journal
		if err := rows.Scan(&j.ID, &j.Code, &j.Name, &j.Type, &j.CreatedAt); err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Journal, error) {
	var j Journal
	err := r.db.QueryRow(ctx, `SELECT id, code, name, type, created_at FROM journals WHERE id=$1`, id).
		Scan(&j.ID, &j.Code, &j.Name, &j.Type, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, internalShared.NotFoundError(shared.ErrJournalNotFound, "id %d", id)
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *repository) Insert(ctx context.Context, in CreateInput) (Journal, error) {
	j := Journal{Code: in.Code, Name: in.Name, Type: in.Type}
	err := r.db.QueryRow(ctx, `INSERT INTO journals (code, name, type) VALUES ($1,$2,$3) RETURNING id, created_at`, in.Code, in.Name, string(in.Type)).
		Scan(&j.ID, &j.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journals_code") {
			return Journal{}, internalShared.ConflictError(shared.ErrDuplicateJournalCode, "code %s", in.Code)
		}
		return Journal{}, err
	}
	return j, nil
}
