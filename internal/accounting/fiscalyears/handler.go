package fiscalyears

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/transitops/fleet-ledger/internal/platform/httpx"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type fiscalYearService interface {
	List(ctx context.Context) ([]FiscalYear, error)
	Get(ctx context.Context, id int64) (FiscalYear, error)
	Current(ctx context.Context) (FiscalYear, error)
	FindOpenByDate(ctx context.Context, date time.Time) (FiscalYear, error)
	Create(ctx context.Context, in CreateInput) (FiscalYear, error)
	Close(ctx context.Context, id, actorID int64) (FiscalYear, error)
}

type Handler struct {
	service   fiscalYearService
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service fiscalYearService) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/current", h.current)
	r.Get("/{id}", h.get)
	r.Post("/{id}/close", h.close)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list fiscal years", err)
		return
	}
	if years == nil {
		years = []FiscalYear{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"fiscal_years": years})
}

// current returns the open year covering ?date=, or today when absent.
func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	date, err := httpx.QueryDate(r, "date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var fy FiscalYear
	if date != nil {
		fy, err = h.service.FindOpenByDate(r.Context(), *date)
	} else {
		fy, err = h.service.Current(r.Context())
	}
	if err != nil {
		h.fail(w, "current fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createFiscalYearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.ParseDate("start_date", req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.ParseDate("end_date", req.EndDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.Create(r.Context(), CreateInput{Name: req.Name, StartDate: start, EndDate: end, ActorID: httpx.ActorID(r)})
	if err != nil {
		h.fail(w, "create fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fy)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.Close(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "close fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if internalShared.KindOf(err) == nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
