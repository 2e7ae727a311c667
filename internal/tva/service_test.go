package tva

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	internalShared "github.com/transitops/fleet-ledger/internal/shared"
	_ "github.com/transitops/fleet-ledger/testing"
)

type memoryRepo struct {
	items  map[int64]Declaration
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Declaration)}
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Declaration, error) {
	var out []Declaration
	for id := r.nextID; id >= 1; id-- {
		d, ok := r.items[id]
		if !ok {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.Year != nil && d.PeriodStart.Year() != *filter.Year {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Declaration, error) {
	d, ok := r.items[id]
	if !ok {
		return Declaration{}, internalShared.NotFoundError(ErrDeclarationNotFound, "id %d", id)
	}
	return d, nil
}

func (r *memoryRepo) clash(d Declaration) bool {
	for _, other := range r.items {
		if other.ID != d.ID && other.Regime == d.Regime && other.PeriodStart.Equal(d.PeriodStart) {
			return true
		}
	}
	return false
}

func (r *memoryRepo) Insert(ctx context.Context, d Declaration) (Declaration, error) {
	if r.clash(d) {
		return Declaration{}, internalShared.ConflictError(ErrDuplicateDeclaration, "%s", d.PeriodStart)
	}
	r.nextID++
	d.ID = r.nextID
	d.Status = StatusDraft
	r.items[d.ID] = d
	return d, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Declaration, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTx) Update(ctx context.Context, d Declaration) (Declaration, error) {
	if t.repo.clash(d) {
		return Declaration{}, internalShared.ConflictError(ErrDuplicateDeclaration, "%s", d.PeriodStart)
	}
	d.Status = t.repo.items[d.ID].Status
	t.repo.items[d.ID] = d
	return d, nil
}

func (t *memoryTx) Delete(ctx context.Context, id int64) error {
	delete(t.repo.items, id)
	return nil
}

func (t *memoryTx) MarkSubmitted(ctx context.Context, id, actorID int64, at time.Time) (Declaration, error) {
	d := t.repo.items[id]
	d.Status = StatusSubmitted
	d.SubmittedAt = &at
	d.SubmittedBy = &actorID
	t.repo.items[id] = d
	return d, nil
}

type countingMetrics struct {
	submitted map[string]int
}

func (m *countingMetrics) DeclarationSubmitted(regime string) {
	m.submitted[regime]++
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func newTestService() (*Service, *recordingAudit, *countingMetrics) {
	audit := &recordingAudit{}
	metrics := &countingMetrics{submitted: make(map[string]int)}
	svc := NewService(newMemoryRepo(), audit)
	svc.WithMetrics(metrics)
	svc.WithNow(func() time.Time { return time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC) })
	return svc, audit, metrics
}

func marchInput() Input {
	return Input{
		PeriodStart: day("2024-03-01"),
		PeriodEnd:   day("2024-03-31"),
		Regime:      RegimeMonthly,
		Amounts:     Amounts{Collected20: dec("100"), DeductibleCharges: dec("600")},
		Notes:       " gasoil heavy month ",
	}
}

func TestServiceCreateStoresDerivedFigures(t *testing.T) {
	svc, audit, _ := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, marchInput(), 3)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, d.Status)
	require.Equal(t, "-500.00", d.TVADue.StringFixed(2))
	require.Equal(t, "0.00", d.TVAToPay.StringFixed(2))
	require.Equal(t, "500.00", d.NewCreditReport.StringFixed(2))
	require.Equal(t, "gasoil heavy month", d.Notes)
	require.Equal(t, []string{"tva.create"}, audit.actions)

	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "500.00", got.NewCreditReport.StringFixed(2))
}

func TestServiceDuplicatePeriodConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, marchInput(), 1)
	require.NoError(t, err)
	_, err = svc.Create(ctx, marchInput(), 1)
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.ErrorIs(t, err, ErrDuplicateDeclaration)

	quarterly := Input{PeriodStart: day("2024-01-01"), PeriodEnd: day("2024-03-31"), Regime: RegimeQuarterly}
	_, err = svc.Create(ctx, quarterly, 1)
	require.NoError(t, err)
}

func TestServiceSubmitFreezesDeclaration(t *testing.T) {
	svc, audit, metrics := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, marchInput(), 1)
	require.NoError(t, err)

	in := marchInput()
	in.Amounts.Collected20 = dec("1000")
	in.Amounts.DeductibleCharges = dec("500")
	d, err = svc.Update(ctx, d.ID, in, 1)
	require.NoError(t, err)
	require.Equal(t, "500.00", d.TVAToPay.StringFixed(2))

	submitted, err := svc.Submit(ctx, d.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.Equal(t, 1, metrics.submitted["monthly"])

	_, err = svc.Submit(ctx, d.ID, 9)
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.ErrorIs(t, err, ErrDeclarationSubmitted)

	_, err = svc.Update(ctx, d.ID, in, 1)
	require.ErrorIs(t, err, internalShared.ErrImmutable)

	err = svc.Delete(ctx, d.ID, 1)
	require.ErrorIs(t, err, internalShared.ErrImmutable)

	require.Equal(t, []string{"tva.create", "tva.update", "tva.submit"}, audit.actions)
}

func TestServiceDeleteDraftAndList(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, marchInput(), 1)
	require.NoError(t, err)
	april := marchInput()
	april.PeriodStart, april.PeriodEnd = day("2024-04-01"), day("2024-04-30")
	kept, err := svc.Create(ctx, april, 1)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, kept.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, d.ID, 1))
	_, err = svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, internalShared.ErrNotFound)

	status := StatusSubmitted
	year := 2024
	items, err := svc.List(ctx, ListFilter{Status: &status, Year: &year})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, kept.ID, items[0].ID)

	bad := Status("archived")
	_, err = svc.List(ctx, ListFilter{Status: &bad})
	require.ErrorIs(t, err, internalShared.ErrValidation)
}

func TestServicePreviewValidatesAmounts(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Preview(context.Background(), Amounts{Collected7: dec("-3")})
	require.ErrorIs(t, err, internalShared.ErrValidation)

	res, err := svc.Preview(context.Background(), Amounts{Collected7: dec("70"), CreditReport: dec("20")})
	require.NoError(t, err)
	require.Equal(t, "50.00", res.TVAToPay.StringFixed(2))
}

func newTestRouter() http.Handler {
	svc, _, _ := newTestService()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/api/tva", h.MountRoutes)
	return r
}

func call(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, reader))
	return rr
}

func TestHandlerDeclarationFlow(t *testing.T) {
	router := newTestRouter()
	const body = `{"period_start":"2024-01-01","period_end":"2024-01-31","regime":"monthly",
"collected_20":"1000","deductible_immobilisations":"200","deductible_charges":"300"}`

	rr := call(router, http.MethodPost, "/api/tva/declarations/", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var d Declaration
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	require.Equal(t, "500.00", d.TVAToPay.StringFixed(2))

	rr = call(router, http.MethodPost, "/api/tva/declarations/", body)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = call(router, http.MethodPost, "/api/tva/declarations/1/submit", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"status":"submitted"`)

	rr = call(router, http.MethodPost, "/api/tva/declarations/1/submit", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), `"title":"Conflict"`)

	rr = call(router, http.MethodPut, "/api/tva/declarations/1", body)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), `"title":"Immutable"`)

	rr = call(router, http.MethodGet, "/api/tva/declarations/?year=2024", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"declarations"`)

	rr = call(router, http.MethodGet, "/api/tva/declarations/42", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	router := newTestRouter()

	rr := call(router, http.MethodPost, "/api/tva/declarations/",
		`{"period_start":"2024-01-01","period_end":"2024-02-29","regime":"monthly"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = call(router, http.MethodPost, "/api/tva/declarations/",
		`{"period_start":"2024-01-01","period_end":"2024-01-31","regime":"yearly"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = call(router, http.MethodPost, "/api/tva/declarations/", `{"period_start":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = call(router, http.MethodGet, "/api/tva/declarations/?year=abc", "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandlerCompute(t *testing.T) {
	router := newTestRouter()
	rr := call(router, http.MethodPost, "/api/tva/compute", `{"collected_20":"100","deductible_charges":"600"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, "-500.00", res.TVADue.StringFixed(2))
	require.Equal(t, "500.00", res.NewCreditReport.StringFixed(2))

	rr = call(router, http.MethodPost, "/api/tva/compute", `{"collected_20":"100","unknown":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
