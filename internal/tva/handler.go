package tva

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/transitops/fleet-ledger/internal/platform/httpx"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type declarationService interface {
	Preview(ctx context.Context, a Amounts) (Result, error)
	Get(ctx context.Context, id int64) (Declaration, error)
	List(ctx context.Context, filter ListFilter) ([]Declaration, error)
	Create(ctx context.Context, in Input, actorID int64) (Declaration, error)
	Update(ctx context.Context, id int64, in Input, actorID int64) (Declaration, error)
	Delete(ctx context.Context, id, actorID int64) error
	Submit(ctx context.Context, id, actorID int64) (Declaration, error)
}

type Handler struct {
	service   declarationService
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service declarationService) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/compute", h.compute)
	r.Route("/declarations", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/submit", h.submit)
	})
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	var req amountsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Preview(r.Context(), req.toAmounts())
	if err != nil {
		h.fail(w, "compute tva", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < 1900 {
			httpx.RespondError(w, internalShared.ValidationError(nil, "year must be a four digit number"))
			return
		}
		filter.Year = &year
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list declarations", err)
		return
	}
	if items == nil {
		items = []Declaration{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"declarations": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var req declarationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	start, err := httpx.ParseDate("period_start", req.PeriodStart)
	if err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	end, err := httpx.ParseDate("period_end", req.PeriodEnd)
	if err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	return Input{
		PeriodStart: start,
		PeriodEnd:   end,
		Regime:      Regime(req.Regime),
		Amounts:     req.amountsRequest.toAmounts(),
		Notes:       req.Notes,
	}, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	d, err := h.service.Create(r.Context(), in, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "create declaration", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	d, err := h.service.Update(r.Context(), id, in, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "update declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, httpx.ActorID(r)); err != nil {
		h.fail(w, "delete declaration", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Submit(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "submit declaration", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if internalShared.KindOf(err) == nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
