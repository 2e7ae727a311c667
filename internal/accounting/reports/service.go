package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/transitops/fleet-ledger/internal/platform/cache"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Service builds ledger reports over validated entries. Results are cached
// under a versioned namespace and concurrent builds of one key are collapsed.
// While Redis is unreachable, or a bump is still owed, reports are built
// straight from the repository.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	group  singleflight.Group
	logger *slog.Logger
	stale  atomic.Bool
}

// NewService constructs the report service. A nil cache builds on every call.
func NewService(repo Repository, c *cache.Versioned) *Service {
	if c == nil {
		c = cache.NewVersioned(nil, "reports", 0)
	}
	return &Service{repo: repo, cache: c, logger: slog.Default()}
}

// WithLogger sets the logger used for cache degradation warnings.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Invalidate orphans every cached report. Called after an entry is validated.
// A failed bump leaves the cache marked stale so reads bypass it until a
// later bump succeeds.
func (s *Service) Invalidate(ctx context.Context) error {
	if _, err := s.cache.Bump(ctx); err != nil {
		s.stale.Store(true)
		return fmt.Errorf("reports: bump cache: %w", err)
	}
	s.stale.Store(false)
	return nil
}

func (s *Service) uncached(ctx context.Context, dest any, build func(context.Context) (any, error)) error {
	value, err := build(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *Service) cached(ctx context.Context, dest any, build func(context.Context) (any, error), parts ...string) error {
	if s.stale.Load() {
		if err := s.Invalidate(ctx); err != nil {
			s.logger.Warn("report cache stale, building uncached", slog.Any("error", err))
			return s.uncached(ctx, dest, build)
		}
		s.logger.Info("report cache bump recovered")
	}
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache key unavailable, building uncached", slog.Any("error", err))
		return s.uncached(ctx, dest, build)
	}
	err = s.fetch(ctx, key, dest, build)
	if errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warn("report cache unavailable, building uncached", slog.String("key", key), slog.Any("error", err))
		return s.uncached(ctx, dest, build)
	}
	return err
}

func (s *Service) fetch(ctx context.Context, key string, dest any, build func(context.Context) (any, error)) error {
	resultChan := s.group.DoChan(key, func() (any, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, build); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

// Ledger returns the Grand Livre of one account.
func (s *Service) Ledger(ctx context.Context, accountID int64, filter Filter) (Ledger, error) {
	if err := filter.Validate(); err != nil {
		return Ledger{}, err
	}
	account, err := s.repo.Account(ctx, accountID)
	if err != nil {
		return Ledger{}, err
	}
	var ledger Ledger
	parts := append([]string{"ledger", strconv.FormatInt(accountID, 10)}, filter.keyParts()...)
	err = s.cached(ctx, &ledger, func(ctx context.Context) (any, error) {
		return s.buildLedger(ctx, account, filter)
	}, parts...)
	return ledger, err
}

// LedgerByCode resolves the account by code first.
func (s *Service) LedgerByCode(ctx context.Context, code string, filter Filter) (Ledger, error) {
	account, err := s.repo.AccountByCode(ctx, code)
	if err != nil {
		return Ledger{}, err
	}
	return s.Ledger(ctx, account.ID, filter)
}

func (s *Service) buildLedger(ctx context.Context, account AccountRef, filter Filter) (Ledger, error) {
	b := NewLedgerBuilder(account)
	err := s.repo.StreamLedger(ctx, account.ID, filter, func(line LedgerLine) error {
		b.Add(line)
		return nil
	})
	if err != nil {
		return Ledger{}, err
	}
	return b.Result(), nil
}

// TrialBalance returns the balance générale.
func (s *Service) TrialBalance(ctx context.Context, filter Filter) (TrialBalance, error) {
	if err := filter.Validate(); err != nil {
		return TrialBalance{}, err
	}
	var tb TrialBalance
	parts := append([]string{"trial_balance"}, filter.keyParts()...)
	err := s.cached(ctx, &tb, func(ctx context.Context) (any, error) {
		return s.buildTrialBalance(ctx, filter)
	}, parts...)
	return tb, err
}

func (s *Service) buildTrialBalance(ctx context.Context, filter Filter) (TrialBalance, error) {
	b := NewTrialBalanceBuilder()
	err := s.repo.StreamAccountTotals(ctx, filter, func(t AccountTotals) error {
		b.Add(t)
		return nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return b.Result(), nil
}

// IncomeStatement derives revenue and expenses from the trial balance.
func (s *Service) IncomeStatement(ctx context.Context, filter Filter) (IncomeStatement, error) {
	tb, err := s.TrialBalance(ctx, filter)
	if err != nil {
		return IncomeStatement{}, err
	}
	return BuildIncomeStatement(tb), nil
}

// BalanceSheet derives the bilan from the trial balance.
func (s *Service) BalanceSheet(ctx context.Context, filter Filter) (BalanceSheet, error) {
	tb, err := s.TrialBalance(ctx, filter)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(tb), nil
}

// VATBreakdown suggests declaration amounts for [from, to].
func (s *Service) VATBreakdown(ctx context.Context, from, to time.Time) (VATBreakdown, error) {
	if to.Before(from) {
		return VATBreakdown{}, internalShared.ValidationError(nil, "to %s before from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	var out VATBreakdown
	err := s.cached(ctx, &out, func(ctx context.Context) (any, error) {
		b := NewVATBreakdownBuilder(from, to)
		if err := s.repo.StreamVAT(ctx, from, to, func(row VATRow) error {
			b.Add(row)
			return nil
		}); err != nil {
			return nil, err
		}
		return b.Result(), nil
	}, "vat", from.Format("20060102"), to.Format("20060102"))
	return out, err
}

// Integrity scans all validated entries, bypassing the cache.
func (s *Service) Integrity(ctx context.Context) (IntegrityReport, error) {
	tb, err := s.buildTrialBalance(ctx, Filter{})
	if err != nil {
		return IntegrityReport{}, err
	}
	report := IntegrityReport{
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Balanced:    tb.Balanced,
		Mismatches:  []Mismatch{},
	}
	err = s.repo.StreamMismatches(ctx, func(m Mismatch) error {
		report.Mismatches = append(report.Mismatches, m)
		return nil
	})
	if err != nil {
		return IntegrityReport{}, err
	}
	return report, nil
}

// Warm builds the trial balance for each filter so the next reads hit the cache.
func (s *Service) Warm(ctx context.Context, filters []Filter) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, f := range filters {
		g.Go(func() error {
			_, err := s.TrialBalance(ctx, f)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(filters), nil
}
