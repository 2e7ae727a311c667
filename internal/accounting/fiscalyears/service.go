package fiscalyears

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// AuditPort records fiscal year transitions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context) ([]FiscalYear, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (FiscalYear, error) {
	return s.repo.Get(ctx, id)
}

// FindOpenByDate resolves the default target fiscal year for an entry date.
func (s *Service) FindOpenByDate(ctx context.Context, date time.Time) (FiscalYear, error) {
	return s.repo.FindOpenByDate(ctx, date)
}

// Current returns the open fiscal year covering today.
func (s *Service) Current(ctx context.Context) (FiscalYear, error) {
	return s.repo.FindOpenByDate(ctx, s.now())
}

// Create opens a new fiscal year after validating overlap.
func (s *Service) Create(ctx context.Context, in CreateInput) (FiscalYear, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return FiscalYear{}, err
	}
	in.StartDate = truncateDay(in.StartDate)
	in.EndDate = truncateDay(in.EndDate)
	conflict, err := s.repo.RangeConflict(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return FiscalYear{}, err
	}
	if conflict {
		return FiscalYear{}, internalShared.ConflictError(shared.ErrFiscalYearOverlap, "%s to %s",
			in.StartDate.Format("2006-01-02"), in.EndDate.Format("2006-01-02"))
	}
	fy, err := s.repo.Insert(ctx, in)
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, in.ActorID, "fiscal_year.create", fy, map[string]any{
		"name":       fy.Name,
		"start_date": fy.StartDate.Format("2006-01-02"),
		"end_date":   fy.EndDate.Format("2006-01-02"),
	})
	return fy, nil
}

// Close moves the fiscal year to its terminal closed state.
func (s *Service) Close(ctx context.Context, id, actorID int64) (FiscalYear, error) {
	var closed FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := internalShared.ValidateTransition(string(current.Status), string(StatusClosed)); err != nil {
			return internalShared.ConflictError(shared.ErrFiscalYearClosed, "%s", current.Name)
		}
		closed, err = tx.MarkClosed(ctx, id, actorID, s.now())
		return err
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, actorID, "fiscal_year.close", closed, map[string]any{"name": closed.Name})
	return closed, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, fy FiscalYear, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fiscal_year",
		EntityID: fmt.Sprintf("%d", fy.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
