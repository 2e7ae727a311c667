package entries

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/transitops/fleet-ledger/internal/accounting/accounts"
	"github.com/transitops/fleet-ledger/internal/accounting/fiscalyears"
	"github.com/transitops/fleet-ledger/internal/accounting/journals"
	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
	_ "github.com/transitops/fleet-ledger/testing"
)

const (
	accBank     int64 = 1
	accFuel     int64 = 2
	accPurchase int64 = 3
	accRevenue  int64 = 4
	accVATOut   int64 = 5
	accInactive int64 = 7

	journalPurchases int64 = 1
	fiscal2024       int64 = 1
	fiscal2023       int64 = 2
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc         *Service
	repo        *memoryRepo
	audit       *recordingAudit
	metrics     *countingMetrics
	invalidator *countingInvalidator
}

func newFixture() fixture {
	repo := newMemoryRepo()
	for _, a := range []accounts.Account{
		{ID: accBank, Code: "5141", Name: "Banque", Class: accounts.ClassTreasury, Nature: accounts.NatureDebit, Type: accounts.TypeDetail, IsActive: true},
		{ID: accFuel, Code: "6125", Name: "Carburant", Class: accounts.ClassExpenses, Nature: accounts.NatureDebit, Type: accounts.TypeDetail, IsActive: true},
		{ID: accPurchase, Code: "612", Name: "Achats consommés", Class: accounts.ClassExpenses, Nature: accounts.NatureDebit, Type: accounts.TypeTitle, IsActive: true},
		{ID: accRevenue, Code: "7124", Name: "Transport", Class: accounts.ClassRevenue, Nature: accounts.NatureCredit, Type: accounts.TypeDetail, IsActive: true},
		{ID: accVATOut, Code: "4455", Name: "TVA facturée", Class: accounts.ClassCurrentLiabilities, Nature: accounts.NatureCredit, Type: accounts.TypeDetail, IsActive: true},
		{ID: accInactive, Code: "6126", Name: "Lubrifiants", Class: accounts.ClassExpenses, Nature: accounts.NatureDebit, Type: accounts.TypeDetail, IsActive: false},
	} {
		repo.accounts[a.ID] = a
	}
	repo.journals[journalPurchases] = journals.Journal{ID: journalPurchases, Code: "ACH", Name: "Achats", Type: journals.JournalTypePurchases}
	repo.fiscalYears[fiscal2024] = fiscalyears.FiscalYear{ID: fiscal2024, Name: "2024", StartDate: day(2024, 1, 1), EndDate: day(2024, 12, 31), Status: fiscalyears.StatusOpen}
	repo.fiscalYears[fiscal2023] = fiscalyears.FiscalYear{ID: fiscal2023, Name: "2023", StartDate: day(2023, 1, 1), EndDate: day(2023, 12, 31), Status: fiscalyears.StatusClosed}

	audit := &recordingAudit{}
	metrics := &countingMetrics{}
	inv := &countingInvalidator{}
	svc := NewService(repo, audit)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) })
	svc.WithMetrics(metrics)
	svc.WithInvalidator(inv)
	return fixture{svc: svc, repo: repo, audit: audit, metrics: metrics, invalidator: inv}
}

func fuelInput(number string, debit, credit string) CreateInput {
	return CreateInput{
		EntryNumber:  number,
		EntryDate:    day(2024, 3, 5),
		JournalID:    journalPurchases,
		FiscalYearID: fiscal2024,
		Description:  "Gasoil camion 12-A-3456",
		ActorID:      9,
		Lines: []LineInput{
			{AccountID: accFuel, Label: "Gasoil", Debit: d(debit), TVARate: 10},
			{AccountID: accBank, Label: "Banque", Credit: d(credit)},
		},
	}
}

func TestCreateStoresDraftWithComputedTotals(t *testing.T) {
	f := newFixture()
	entry, err := f.svc.Create(context.Background(), fuelInput("ACH-001", "100.00", "100.00"))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, entry.Status)
	require.True(t, entry.TotalDebit.Equal(d("100")))
	require.True(t, entry.TotalCredit.Equal(d("100")))
	require.Equal(t, fiscal2024, entry.FiscalYearID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, 1, entry.Lines[0].Position)
	require.True(t, entry.Lines[0].TVAAmount.Equal(d("10.00")))
	require.True(t, entry.Lines[1].TVAAmount.IsZero())
	require.Equal(t, 1, f.metrics.created)
	require.Equal(t, []string{"entry.create"}, f.audit.actions)
}

func TestCreateKeepsExplicitTVAAmount(t *testing.T) {
	f := newFixture()
	in := fuelInput("ACH-002", "120.00", "120.00")
	explicit := d("10.91")
	in.Lines[0].TVAAmount = &explicit
	entry, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.True(t, entry.Lines[0].TVAAmount.Equal(explicit))
}

func TestCreateRejectsUnbalancedEntry(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), fuelInput("ACH-003", "100.00", "90.00"))
	require.ErrorIs(t, err, internalShared.ErrValidation)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Contains(t, err.Error(), "debit 100.00 credit 90.00 difference 10.00")
	require.Empty(t, f.repo.entries)
	require.Equal(t, 1, f.metrics.rejected["unbalanced"])
}

func TestCreateRejectsOneCentDifference(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), fuelInput("ACH-004", "100.01", "100.00"))
	require.ErrorIs(t, err, shared.ErrUnbalanced)
}

func TestCreateChecksRunInOrder(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		edit  func(*CreateInput)
		kind  error
		cause error
	}{
		{
			name:  "single line wins over everything",
			edit:  func(in *CreateInput) { in.Lines = in.Lines[:1]; in.Lines[0].AccountID = 99 },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrTooFewLines,
		},
		{
			name:  "unknown account before balance",
			edit:  func(in *CreateInput) { in.Lines[0].AccountID = 99; in.Lines[0].Debit = d("5") },
			kind:  internalShared.ErrNotFound,
			cause: shared.ErrAccountNotFound,
		},
		{
			name:  "title account before balance",
			edit:  func(in *CreateInput) { in.Lines[0].AccountID = accPurchase; in.Lines[0].Debit = d("5") },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrAccountNotPostable,
		},
		{
			name:  "inactive account",
			edit:  func(in *CreateInput) { in.Lines[0].AccountID = accInactive },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrAccountInactive,
		},
		{
			name:  "balance before journal",
			edit:  func(in *CreateInput) { in.JournalID = 42; in.Lines[0].Debit = d("5") },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrUnbalanced,
		},
		{
			name:  "unknown journal",
			edit:  func(in *CreateInput) { in.JournalID = 42 },
			kind:  internalShared.ErrNotFound,
			cause: shared.ErrJournalNotFound,
		},
		{
			name:  "unknown fiscal year",
			edit:  func(in *CreateInput) { in.FiscalYearID = 42 },
			kind:  internalShared.ErrNotFound,
			cause: shared.ErrFiscalYearNotFound,
		},
		{
			name:  "closed fiscal year",
			edit:  func(in *CreateInput) { in.FiscalYearID = fiscal2023; in.EntryDate = day(2023, 6, 1) },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrFiscalYearClosed,
		},
		{
			name:  "negative amount",
			edit:  func(in *CreateInput) { in.Lines[1].Credit = d("-100") },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrNegativeAmount,
		},
		{
			name:  "sub-cent amount",
			edit:  func(in *CreateInput) { in.Lines[0].Debit = d("100.005") },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrAmountPrecision,
		},
		{
			name:  "unsupported rate",
			edit:  func(in *CreateInput) { in.Lines[0].TVARate = 15 },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrInvalidTVARate,
		},
		{
			name:  "empty line",
			edit:  func(in *CreateInput) { in.Lines = append(in.Lines, LineInput{AccountID: accBank}) },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrEmptyLine,
		},
		{
			name:  "missing account",
			edit:  func(in *CreateInput) { in.Lines[0].AccountID = 0 },
			kind:  internalShared.ErrValidation,
			cause: shared.ErrAccountRequired,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			in := fuelInput("ACH-010", "100.00", "100.00")
			tc.edit(&in)
			_, err := f.svc.Create(ctx, in)
			require.ErrorIs(t, err, tc.kind)
			require.ErrorIs(t, err, tc.cause)
			require.Empty(t, f.repo.entries)
		})
	}
}

func TestCreateRejectsTitleAccountLine(t *testing.T) {
	f := newFixture()
	in := fuelInput("ACH-011", "100.00", "100.00")
	in.Lines[0].AccountID = accPurchase
	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, internalShared.ErrValidation)
	require.ErrorIs(t, err, shared.ErrAccountNotPostable)
	require.Contains(t, err.Error(), "612")
}

func TestCreateEnforcesFiscalYearBounds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := fuelInput("ACH-020", "50.00", "50.00")
	in.EntryDate = day(2023, 12, 31)
	_, err := f.svc.Create(ctx, in)
	require.ErrorIs(t, err, internalShared.ErrValidation)
	require.ErrorIs(t, err, shared.ErrDateOutOfRange)

	in.EntryDate = day(2024, 1, 1)
	_, err = f.svc.Create(ctx, in)
	require.NoError(t, err)

	in = fuelInput("ACH-021", "50.00", "50.00")
	in.EntryDate = day(2024, 12, 31)
	_, err = f.svc.Create(ctx, in)
	require.NoError(t, err)

	in = fuelInput("ACH-022", "50.00", "50.00")
	in.EntryDate = day(2025, 1, 1)
	_, err = f.svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrDateOutOfRange)
}

func TestCreateResolvesOpenFiscalYearByDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := fuelInput("ACH-030", "80.00", "80.00")
	in.FiscalYearID = 0
	entry, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, fiscal2024, entry.FiscalYearID)

	in = fuelInput("ACH-031", "80.00", "80.00")
	in.FiscalYearID = 0
	in.EntryDate = day(2023, 6, 1)
	_, err = f.svc.Create(ctx, in)
	require.ErrorIs(t, err, internalShared.ErrNotFound)
	require.ErrorIs(t, err, shared.ErrFiscalYearNotFound)
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, fuelInput("ACH-040", "10.00", "10.00"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, fuelInput("ACH-040", "20.00", "20.00"))
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.ErrorIs(t, err, shared.ErrDuplicateEntryNumber)
	require.Len(t, f.repo.entries, 1)
}

func TestUpdateReplacesDraftLines(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	entry, err := f.svc.Create(ctx, fuelInput("ACH-050", "10.00", "10.00"))
	require.NoError(t, err)

	in := fuelInput("ACH-050", "250.00", "250.00")
	in.Lines = append(in.Lines, LineInput{AccountID: accFuel, Debit: d("30.00")}, LineInput{AccountID: accBank, Credit: d("30.00")})
	updated, err := f.svc.Update(ctx, entry.ID, in)
	require.NoError(t, err)
	require.Len(t, updated.Lines, 4)
	require.True(t, updated.TotalDebit.Equal(d("280")))
	require.Equal(t, StatusDraft, updated.Status)

	bad := fuelInput("ACH-050", "250.00", "240.00")
	_, err = f.svc.Update(ctx, entry.ID, bad)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	stored, err := f.svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 4)
}

func TestValidatedEntriesAreImmutable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	entry, err := f.svc.Create(ctx, fuelInput("ACH-060", "100.00", "100.00"))
	require.NoError(t, err)

	validated, err := f.svc.Validate(ctx, entry.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusValidated, validated.Status)
	require.NotNil(t, validated.ValidatedAt)
	require.Equal(t, 1, f.invalidator.calls)
	require.Equal(t, 1, f.metrics.validated)

	_, err = f.svc.Validate(ctx, entry.ID, 3)
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.ErrorIs(t, err, shared.ErrEntryValidated)

	_, err = f.svc.Update(ctx, entry.ID, fuelInput("ACH-060", "1.00", "1.00"))
	require.ErrorIs(t, err, internalShared.ErrImmutable)

	err = f.svc.Delete(ctx, entry.ID, 3)
	require.ErrorIs(t, err, internalShared.ErrImmutable)

	stored, err := f.svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalDebit.Equal(d("100")))
	require.Equal(t, 1, f.invalidator.calls)
}

func TestValidateLogsFailedCacheInvalidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	var logs bytes.Buffer
	f.svc.WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	f.invalidator.err = errors.New("bump cache: connection refused")

	entry, err := f.svc.Create(ctx, fuelInput("ACH-065", "500.00", "500.00"))
	require.NoError(t, err)
	validated, err := f.svc.Validate(ctx, entry.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusValidated, validated.Status)
	require.Equal(t, 1, f.invalidator.calls)

	out := logs.String()
	require.Contains(t, out, "level=ERROR")
	require.Contains(t, out, "report cache invalidation failed")
	require.Contains(t, out, "ACH-065")
	require.Contains(t, out, "connection refused")
}

func TestValidateRechecksStoredLines(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	entry, err := f.svc.Create(ctx, fuelInput("ACH-070", "100.00", "100.00"))
	require.NoError(t, err)

	tampered := f.repo.entries[entry.ID]
	tampered.TotalDebit = d("99.00")
	f.repo.entries[entry.ID] = tampered
	_, err = f.svc.Validate(ctx, entry.ID, 1)
	require.ErrorIs(t, err, internalShared.ErrValidation)
	require.ErrorIs(t, err, shared.ErrTotalsMismatch)

	tampered.TotalDebit = d("100.00")
	tampered.Lines[1].Credit = d("90.00")
	f.repo.entries[entry.ID] = tampered
	_, err = f.svc.Validate(ctx, entry.ID, 1)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Equal(t, StatusDraft, f.repo.entries[entry.ID].Status)
}

func TestValidateRefusesClosedFiscalYear(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	entry, err := f.svc.Create(ctx, fuelInput("ACH-080", "100.00", "100.00"))
	require.NoError(t, err)

	fy := f.repo.fiscalYears[fiscal2024]
	fy.Status = fiscalyears.StatusClosed
	f.repo.fiscalYears[fiscal2024] = fy

	_, err = f.svc.Validate(ctx, entry.ID, 1)
	require.ErrorIs(t, err, internalShared.ErrValidation)
	require.ErrorIs(t, err, shared.ErrFiscalYearClosed)
	require.Zero(t, f.invalidator.calls)
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	entry, err := f.svc.Create(ctx, fuelInput("ACH-090", "100.00", "100.00"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, entry.ID, 1))
	_, err = f.svc.Get(ctx, entry.ID)
	require.ErrorIs(t, err, internalShared.ErrNotFound)
	require.Equal(t, []string{"entry.create", "entry.delete"}, f.audit.actions)
}

func TestReverseCreatesOffsettingDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	entry, err := f.svc.Create(ctx, fuelInput("ACH-100", "100.00", "100.00"))
	require.NoError(t, err)

	_, err = f.svc.Reverse(ctx, entry.ID, ReverseInput{EntryNumber: "ACH-100R"})
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.ErrorIs(t, err, shared.ErrEntryNotValidated)

	_, err = f.svc.Validate(ctx, entry.ID, 1)
	require.NoError(t, err)

	reversal, err := f.svc.Reverse(ctx, entry.ID, ReverseInput{EntryNumber: "ACH-100R", ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, reversal.Status)
	require.Equal(t, SourceReversal, *reversal.SourceType)
	require.Equal(t, entry.ID, *reversal.SourceID)
	require.Equal(t, "Reversal of ACH-100", reversal.Description)
	require.True(t, reversal.Lines[0].Credit.Equal(d("100")))
	require.True(t, reversal.Lines[0].Debit.IsZero())
	require.True(t, reversal.Lines[0].TVAAmount.Equal(d("10")))
	require.True(t, reversal.Lines[1].Debit.Equal(d("100")))

	_, err = f.svc.Reverse(ctx, entry.ID, ReverseInput{EntryNumber: "ACH-100R2"})
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, err := f.svc.Create(ctx, fuelInput("ACH-110", "10.00", "10.00"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, fuelInput("ACH-111", "10.00", "10.00"))
	require.NoError(t, err)
	_, err = f.svc.Validate(ctx, first.ID, 1)
	require.NoError(t, err)

	validated := StatusValidated
	items, total, err := f.svc.List(ctx, ListFilter{Status: &validated})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, first.ID, items[0].ID)

	bogus := Status("reversed")
	_, _, err = f.svc.List(ctx, ListFilter{Status: &bogus})
	require.ErrorIs(t, err, internalShared.ErrValidation)
}
