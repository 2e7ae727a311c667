package mappings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, module, key string) (AccountMapping, error)
	JournalIDByCode(ctx context.Context, code string) (int64, error)
	Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves the account mapped to key within module.
func (r *repository) Get(ctx context.Context, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, internalShared.ValidationError(nil, "mapping module and key required")
	}
	normalized := strings.ToUpper(module)
	var m AccountMapping
	err := r.db.QueryRow(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings
WHERE module=$1 AND key=$2`, normalized, key).
		Scan(&m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, internalShared.NotFoundError(shared.ErrMappingNotFound, "%s/%s", normalized, key)
		}
		return AccountMapping{}, err
	}
	return m, nil
}

func (r *repository) JournalIDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM journals WHERE code=$1`, strings.ToUpper(strings.TrimSpace(code))).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, internalShared.NotFoundError(shared.ErrJournalNotFound, "code %s", code)
	}
	return id, err
}

// Upsert points module/key at a new account.
func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	m.Module = strings.ToUpper(strings.TrimSpace(m.Module))
	m.Key = strings.TrimSpace(m.Key)
	if m.Module == "" || m.Key == "" || m.AccountID <= 0 {
		return AccountMapping{}, internalShared.ValidationError(nil, "mapping module, key and account required")
	}
	err := r.db.QueryRow(ctx, `INSERT INTO account_mappings (module, key, account_id) VALUES ($1,$2,$3)
ON CONFLICT (module, key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()
RETURNING created_at, updated_at`, m.Module, m.Key, m.AccountID).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return AccountMapping{}, err
	}
	return m, nil
}
