package reports

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/transitops/fleet-ledger/internal/platform/httpx"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type reportService interface {
	Ledger(ctx context.Context, accountID int64, filter Filter) (Ledger, error)
	TrialBalance(ctx context.Context, filter Filter) (TrialBalance, error)
	IncomeStatement(ctx context.Context, filter Filter) (IncomeStatement, error)
	BalanceSheet(ctx context.Context, filter Filter) (BalanceSheet, error)
	VATBreakdown(ctx context.Context, from, to time.Time) (VATBreakdown, error)
}

type Handler struct {
	service reportService
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service reportService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/{accountID}", h.ledger)
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/income-statement", h.incomeStatement)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Get("/vat-breakdown", h.vatBreakdown)
}

func parseFilter(r *http.Request) (Filter, error) {
	var (
		f   Filter
		err error
	)
	if f.FiscalYearID, err = httpx.QueryInt64(r, "fiscal_year_id"); err != nil {
		return Filter{}, err
	}
	if f.From, err = httpx.QueryDate(r, "from"); err != nil {
		return Filter{}, err
	}
	if f.To, err = httpx.QueryDate(r, "to"); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.IDParam(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ledger, err := h.service.Ledger(r.Context(), accountID, filter)
	if err != nil {
		h.fail(w, "ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), filter)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	is, err := h.service.IncomeStatement(r.Context(), filter)
	if err != nil {
		h.fail(w, "income statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, is)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), filter)
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) vatBreakdown(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if from == nil || to == nil {
		httpx.RespondError(w, internalShared.ValidationError(nil, "from and to are required"))
		return
	}
	out, err := h.service.VATBreakdown(r.Context(), *from, *to)
	if err != nil {
		h.fail(w, "vat breakdown", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if internalShared.KindOf(err) == nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
