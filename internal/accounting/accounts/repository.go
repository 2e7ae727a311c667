package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	"github.com/transitops/fleet-ledger/internal/platform/db"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	Insert(ctx context.Context, in CreateInput) (Account, error)
	SetActive(ctx context.Context, id int64, active bool) (Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, class, nature, type, parent_code, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Class, &a.Nature, &a.Type, &a.ParentCode, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Class != nil {
		args = append(args, int(*filter.Class))
		conds = append(conds, "class = $1")
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY code`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, internalShared.NotFoundError(shared.ErrAccountNotFound, "id %d", id)
	}
	return a, err
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, internalShared.NotFoundError(shared.ErrAccountNotFound, "code %s", code)
	}
	return a, err
}

func (r *repository) Insert(ctx context.Context, in CreateInput) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, class, nature, type, parent_code)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+accountColumns, in.Code, in.Name, int(in.Class), string(in.Nature), string(in.Type), in.ParentCode))
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_code") {
			return Account{}, internalShared.ConflictError(shared.ErrDuplicateAccountCode, "code %s", in.Code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1 RETURNING `+accountColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, internalShared.NotFoundError(shared.ErrAccountNotFound, "id %d", id)
	}
	return a, err
}
