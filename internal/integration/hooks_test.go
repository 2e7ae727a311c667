package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/transitops/fleet-ledger/internal/accounting/entries"
	"github.com/transitops/fleet-ledger/internal/accounting/mappings"
	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
	_ "github.com/transitops/fleet-ledger/testing"
)

type memoryMappings struct {
	accounts map[string]int64
	journals map[string]int64
}

func newMemoryMappings() *memoryMappings {
	return &memoryMappings{
		accounts: map[string]int64{
			"FUEL/fuel.expense":               10,
			"FUEL/fuel.vat":                   11,
			"FUEL/fuel.payable":               12,
			"FUEL/fuel.cash":                  13,
			"MISSION/mission.receivable":      20,
			"MISSION/mission.revenue":         21,
			"MISSION/mission.vat":             22,
			"MAINTENANCE/maintenance.expense": 30,
			"MAINTENANCE/maintenance.vat":     11,
			"MAINTENANCE/maintenance.payable": 12,
		},
		journals: map[string]int64{PurchaseJournal: 1, SalesJournal: 2},
	}
}

func (m *memoryMappings) Get(ctx context.Context, module, key string) (mappings.AccountMapping, error) {
	id, ok := m.accounts[module+"/"+key]
	if !ok {
		return mappings.AccountMapping{}, internalShared.NotFoundError(shared.ErrMappingNotFound, "%s/%s", module, key)
	}
	return mappings.AccountMapping{Module: module, Key: key, AccountID: id}, nil
}

func (m *memoryMappings) JournalIDByCode(ctx context.Context, code string) (int64, error) {
	id, ok := m.journals[code]
	if !ok {
		return 0, internalShared.NotFoundError(shared.ErrJournalNotFound, "code %s", code)
	}
	return id, nil
}

type recordingLedger struct {
	inputs  []entries.CreateInput
	sources map[string]bool
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{sources: make(map[string]bool)}
}

func (l *recordingLedger) Create(ctx context.Context, in entries.CreateInput) (entries.Entry, error) {
	key := fmt.Sprintf("%s/%d", *in.SourceType, *in.SourceID)
	if l.sources[key] {
		return entries.Entry{}, internalShared.ConflictError(shared.ErrSourceAlreadyLinked, "%s", key)
	}
	l.sources[key] = true
	l.inputs = append(l.inputs, in)
	return entries.Entry{ID: int64(len(l.inputs)), EntryNumber: in.EntryNumber, Status: entries.StatusDraft}, nil
}

func newTestHooks() (*Hooks, *recordingLedger) {
	ledger := newRecordingLedger()
	return NewHooks(ledger, newMemoryMappings(), slog.New(slog.NewTextHandler(io.Discard, nil))), ledger
}

func sums(lines []entries.LineInput) (decimal.Decimal, decimal.Decimal) {
	var debit, credit decimal.Decimal
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

var march5 = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

func rate(v int) *int {
	return &v
}

func TestFuelPurchaseDraftsBalancedEntry(t *testing.T) {
	hooks, ledger := newTestHooks()
	ctx := context.Background()

	posting, err := hooks.HandleFuelPurchased(ctx, FuelPurchasedEvent{
		ID: 77, Number: "BC-0077", Date: march5, Vehicle: "12-A-3456", AmountHT: decimal.RequireFromString("1000.00"),
	})
	require.NoError(t, err)
	require.False(t, posting.Replayed)
	require.Equal(t, "CARB-BC-0077", posting.EntryNumber)

	require.Len(t, ledger.inputs, 1)
	in := ledger.inputs[0]
	require.Equal(t, int64(1), in.JournalID)
	require.Zero(t, in.FiscalYearID)
	require.Equal(t, SourceFuelPurchase, *in.SourceType)
	require.Equal(t, int64(77), *in.SourceID)
	require.Len(t, in.Lines, 3)
	require.Equal(t, int64(10), in.Lines[0].AccountID)
	require.Equal(t, DefaultFuelRate, in.Lines[0].TVARate)
	require.Equal(t, "100.00", in.Lines[1].Debit.StringFixed(2))
	require.Equal(t, int64(12), in.Lines[2].AccountID)
	require.Equal(t, "1100.00", in.Lines[2].Credit.StringFixed(2))
	debit, credit := sums(in.Lines)
	require.True(t, shared.Balanced(debit, credit))
}

func TestFuelPurchasePaidCashUsesCashAccount(t *testing.T) {
	hooks, ledger := newTestHooks()
	_, err := hooks.HandleFuelPurchased(context.Background(), FuelPurchasedEvent{
		ID: 1, Number: "BC-1", Date: march5, AmountHT: decimal.RequireFromString("83.33"), PaidCash: true,
	})
	require.NoError(t, err)
	lines := ledger.inputs[0].Lines
	require.Equal(t, int64(13), lines[2].AccountID)
	require.Equal(t, "8.33", lines[1].Debit.StringFixed(2))
	debit, credit := sums(lines)
	require.True(t, debit.Equal(credit))
}

func TestReplayedEventIsIgnored(t *testing.T) {
	hooks, ledger := newTestHooks()
	ctx := context.Background()
	evt := MissionInvoicedEvent{ID: 5, Number: "F-2024-005", Date: march5, Customer: "OCP", AmountHT: decimal.NewFromInt(5000)}

	first, err := hooks.HandleMissionInvoiced(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.EntryID)

	again, err := hooks.HandleMissionInvoiced(ctx, evt)
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Len(t, ledger.inputs, 1)

	in := ledger.inputs[0]
	require.Equal(t, int64(2), in.JournalID)
	require.Equal(t, "5700.00", in.Lines[0].Debit.StringFixed(2))
	require.Equal(t, DefaultMissionRate, in.Lines[1].TVARate)
	require.Equal(t, "700.00", in.Lines[2].Credit.StringFixed(2))
}

func TestMaintenanceInvoiceHonoursRate(t *testing.T) {
	hooks, ledger := newTestHooks()
	_, err := hooks.HandleMaintenanceInvoiced(context.Background(), MaintenanceInvoicedEvent{
		ID: 9, Number: "G-19", Date: march5, AmountHT: decimal.NewFromInt(200), TVARate: rate(10),
	})
	require.NoError(t, err)
	in := ledger.inputs[0]
	require.Equal(t, "ENT-G-19", in.EntryNumber)
	require.Equal(t, 10, in.Lines[0].TVARate)
	require.Equal(t, "20.00", in.Lines[1].Debit.StringFixed(2))
}

func TestExemptEventsBookNoTax(t *testing.T) {
	hooks, ledger := newTestHooks()
	ctx := context.Background()

	_, err := hooks.HandleMissionInvoiced(ctx, MissionInvoicedEvent{
		ID: 12, Number: "F-2024-012", Date: march5, Customer: "ONCF", AmountHT: decimal.RequireFromString("1000.00"), TVARate: rate(0),
	})
	require.NoError(t, err)
	lines := ledger.inputs[0].Lines
	require.Len(t, lines, 2)
	require.Equal(t, int64(20), lines[0].AccountID)
	require.Equal(t, "1000.00", lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(21), lines[1].AccountID)
	require.Equal(t, "1000.00", lines[1].Credit.StringFixed(2))
	require.Zero(t, lines[1].TVARate)
	require.True(t, lines[1].TVAAmount.IsZero())

	_, err = hooks.HandleFuelPurchased(ctx, FuelPurchasedEvent{
		ID: 13, Number: "BC-13", Date: march5, AmountHT: decimal.RequireFromString("250.00"), TVARate: rate(0),
	})
	require.NoError(t, err)
	lines = ledger.inputs[1].Lines
	require.Len(t, lines, 2)
	require.Equal(t, "250.00", lines[0].Debit.StringFixed(2))
	require.Equal(t, "250.00", lines[1].Credit.StringFixed(2))
	for _, l := range lines {
		require.False(t, l.Debit.IsZero() && l.Credit.IsZero())
	}
}

func TestHookRejectsBadEvents(t *testing.T) {
	hooks, ledger := newTestHooks()
	ctx := context.Background()

	skipped, err := hooks.HandleFuelPurchased(ctx, FuelPurchasedEvent{ID: 2, Number: "BC-2", Date: march5})
	require.NoError(t, err)
	require.True(t, skipped.Skipped)

	_, err = hooks.HandleFuelPurchased(ctx, FuelPurchasedEvent{ID: 3, Number: "BC-3", Date: march5, AmountHT: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, internalShared.ErrValidation)

	_, err = hooks.HandleMissionInvoiced(ctx, MissionInvoicedEvent{ID: 4, Number: "F-4", AmountHT: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, internalShared.ErrValidation)

	delete(hooks.mappingRepo.(*memoryMappings).accounts, "MISSION/mission.vat")
	_, err = hooks.HandleMissionInvoiced(ctx, MissionInvoicedEvent{ID: 4, Number: "F-4", Date: march5, AmountHT: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, internalShared.ErrNotFound)
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
	require.Empty(t, ledger.inputs)
}

func TestHandlerPostsEvents(t *testing.T) {
	hooks, ledger := newTestHooks()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), hooks)
	router := chi.NewRouter()
	router.Route("/api/integration", h.MountRoutes)

	post := func(path, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return rr
	}

	const fuel = `{"id":11,"number":"BC-11","date":"2024-03-05","vehicle":"12-A-3456","amount_ht":"450.00","tva_rate":10}`
	rr := post("/api/integration/fuel-purchases", fuel)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"entry_number":"CARB-BC-11"`)

	rr = post("/api/integration/fuel-purchases", fuel)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"replayed":true`)

	rr = post("/api/integration/mission-invoices", `{"id":2,"number":"F-2","date":"2024-03-05","amount_ht":"10","tva_rate":0}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Zero(t, ledger.inputs[1].Lines[1].TVARate)
	require.Len(t, ledger.inputs[1].Lines, 2)

	rr = post("/api/integration/mission-invoices", `{"id":1,"number":"F-1","date":"2024-03-05","amount_ht":"10","tva_rate":12}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = post("/api/integration/maintenance-invoices", `{"id":1,"number":"G-1","date":"05/03/2024","amount_ht":"10"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
