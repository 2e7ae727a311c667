package journals

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/transitops/fleet-ledger/internal/platform/httpx"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type journalService interface {
	List(ctx context.Context) ([]Journal, error)
	Get(ctx context.Context, id int64) (Journal, error)
	Create(ctx context.Context, in CreateInput) (Journal, error)
}

type Handler struct {
	service   journalService
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service journalService) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	journals, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if journals == nil {
		journals = []Journal{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": journals})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.Get(r.Context(), id)
	if err != nil {
		if internalShared.KindOf(err) == nil {
			h.logger.Error("get journal", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.Create(r.Context(), CreateInput{Code: req.Code, Name: req.Name, Type: JournalType(req.Type)})
	if err != nil {
		if internalShared.KindOf(err) == nil {
			h.logger.Error("create journal", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, journal)
}
