package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// AuditPort records registry changes.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service manages the chart of accounts.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	if filter.Class != nil && !filter.Class.Valid() {
		return nil, internalShared.ValidationError(shared.ErrInvalidAccount, "class %d outside 1..7", *filter.Class)
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// Create registers an account. A parent, when given, must be an existing title account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	if in.ParentCode != nil {
		parent, err := s.repo.GetByCode(ctx, *in.ParentCode)
		if err != nil {
			return Account{}, err
		}
		if parent.Type != TypeTitle {
			return Account{}, internalShared.ValidationError(shared.ErrInvalidAccount, "parent %s is not a title account", parent.Code)
		}
		if parent.Class != in.Class {
			return Account{}, internalShared.ValidationError(shared.ErrInvalidAccount, "parent %s belongs to class %d", parent.Code, parent.Class)
		}
	}
	account, err := s.repo.Insert(ctx, in)
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.create", account, nil)
	return account, nil
}

// Deactivate hides the account from new lines. Deactivating twice is a no-op.
func (s *Service) Deactivate(ctx context.Context, id, actorID int64) (Account, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if !current.IsActive {
		return current, nil
	}
	account, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, actorID, "account.deactivate", account, nil)
	return account, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, account Account, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["code"] = account.Code
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", account.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
