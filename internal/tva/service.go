package tva

import (
	"context"
	"fmt"
	"time"

	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// AuditPort records declaration lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// MetricsPort counts submitted declarations.
type MetricsPort interface {
	DeclarationSubmitted(regime string)
}

// Service manages TVA declarations from draft to submitted.
type Service struct {
	repo    Repository
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService constructs the declaration service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches the submission counter.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

// Preview computes the figures of a declaration without storing it.
func (s *Service) Preview(_ context.Context, a Amounts) (Result, error) {
	if err := a.Validate(); err != nil {
		return Result{}, err
	}
	return Compute(a), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Declaration, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Declaration{}, err
	}
	return withCarryOver(d), nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Declaration, error) {
	if filter.Status != nil && *filter.Status != StatusDraft && *filter.Status != StatusSubmitted {
		return nil, internalShared.ValidationError(nil, "unknown status %q", *filter.Status)
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = withCarryOver(items[i])
	}
	return items, nil
}

// Create stores a draft declaration with its derived figures.
func (s *Service) Create(ctx context.Context, in Input, actorID int64) (Declaration, error) {
	d, err := build(in)
	if err != nil {
		return Declaration{}, err
	}
	created, err := s.repo.Insert(ctx, d)
	if err != nil {
		return Declaration{}, err
	}
	created = withCarryOver(created)
	s.record(ctx, actorID, "tva.create", created)
	return created, nil
}

// Update replaces the period, amounts and notes of a draft.
func (s *Service) Update(ctx context.Context, id int64, in Input, actorID int64) (Declaration, error) {
	d, err := build(in)
	if err != nil {
		return Declaration{}, err
	}
	var updated Declaration
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return internalShared.ImmutabilityError(ErrDeclarationSubmitted, "declaration %d", id)
		}
		d.ID = id
		updated, err = tx.Update(ctx, d)
		return err
	})
	if err != nil {
		return Declaration{}, err
	}
	updated = withCarryOver(updated)
	s.record(ctx, actorID, "tva.update", updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	var removed Declaration
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return internalShared.ImmutabilityError(ErrDeclarationSubmitted, "declaration %d", id)
		}
		removed = current
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "tva.delete", removed)
	return nil
}

// Submit freezes a draft. Submitting twice is a conflict.
func (s *Service) Submit(ctx context.Context, id, actorID int64) (Declaration, error) {
	var submitted Declaration
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := internalShared.ValidateTransition(string(current.Status), string(StatusSubmitted)); err != nil {
			return internalShared.ConflictError(ErrDeclarationSubmitted, "declaration %d", id)
		}
		submitted, err = tx.MarkSubmitted(ctx, id, actorID, s.now().UTC())
		return err
	})
	if err != nil {
		return Declaration{}, err
	}
	submitted = withCarryOver(submitted)
	if s.metrics != nil {
		s.metrics.DeclarationSubmitted(string(submitted.Regime))
	}
	s.record(ctx, actorID, "tva.submit", submitted)
	return submitted, nil
}

func build(in Input) (Declaration, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return Declaration{}, err
	}
	result := Compute(in.Amounts)
	return Declaration{
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Regime:      in.Regime,
		Amounts:     in.Amounts,
		TVADue:      result.TVADue,
		TVAToPay:    result.TVAToPay,
		Status:      StatusDraft,
		Notes:       in.Notes,
	}, nil
}

func withCarryOver(d Declaration) Declaration {
	d.NewCreditReport = Compute(d.Amounts).NewCreditReport
	return d
}

func (s *Service) record(ctx context.Context, actorID int64, action string, d Declaration) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "tva_declaration",
		EntityID: fmt.Sprintf("%d", d.ID),
		Meta: map[string]any{
			"regime":       d.Regime,
			"period_start": d.PeriodStart.Format("2006-01-02"),
			"tva_to_pay":   d.TVAToPay.StringFixed(2),
		},
		At: s.now(),
	})
}
