package entries

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/transitops/fleet-ledger/internal/platform/httpx"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// IdempotencyHeader carries the client key deduplicating entry creation.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyModule = "entries.create"

type entryService interface {
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, int, error)
	Create(ctx context.Context, in CreateInput) (Entry, error)
	Update(ctx context.Context, id int64, in CreateInput) (Entry, error)
	Validate(ctx context.Context, id, actorID int64) (Entry, error)
	Delete(ctx context.Context, id, actorID int64) error
	Reverse(ctx context.Context, id int64, in ReverseInput) (Entry, error)
}

type idempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

type Handler struct {
	service     entryService
	idempotency idempotencyStore
	logger      *slog.Logger
	validator   *validator.Validate
}

// NewHandler builds the entry handler. A nil store disables Idempotency-Key handling.
func NewHandler(logger *slog.Logger, service entryService, store idempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: store, validator: httpx.NewValidator()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/validate", h.validate)
	r.Post("/{id}/reverse", h.reverse)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	var err error
	if filter.JournalID, err = httpx.QueryInt64(r, "journal_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.FiscalYearID, err = httpx.QueryInt64(r, "fiscal_year_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Limit, filter.Offset = httpx.Page(r, 50, 200)
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	if items == nil {
		items = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    items,
		"pagination": internalShared.PaginationFromOffset(filter.Limit, filter.Offset, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (CreateInput, bool) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return CreateInput{}, false
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return CreateInput{}, false
	}
	date, err := httpx.ParseDate("entry_date", req.EntryDate)
	if err != nil {
		httpx.RespondError(w, err)
		return CreateInput{}, false
	}
	return req.toInput(date, httpx.ActorID(r)), true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			h.fail(w, "idempotency check", err)
			return
		}
	}
	entry, err := h.service.Create(r.Context(), in)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(r.Context(), key, idempotencyModule); derr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		h.fail(w, "create entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, httpx.ActorID(r)); err != nil {
		h.fail(w, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Validate(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "validate entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := ReverseInput{EntryNumber: req.EntryNumber, Description: req.Description, ActorID: httpx.ActorID(r)}
	if req.EntryDate != "" {
		var date time.Time
		if date, err = httpx.ParseDate("entry_date", req.EntryDate); err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.EntryDate = &date
	}
	entry, err := h.service.Reverse(r.Context(), id, in)
	if err != nil {
		h.fail(w, "reverse entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if internalShared.KindOf(err) == nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
