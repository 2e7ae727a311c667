package integration

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/platform/httpx"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

type eventHandler interface {
	HandleFuelPurchased(ctx context.Context, evt FuelPurchasedEvent) (Posting, error)
	HandleMissionInvoiced(ctx context.Context, evt MissionInvoicedEvent) (Posting, error)
	HandleMaintenanceInvoiced(ctx context.Context, evt MaintenanceInvoicedEvent) (Posting, error)
}

type eventRequest struct {
	ID       int64           `json:"id" validate:"required,gt=0"`
	Number   string          `json:"number" validate:"required,max=40"`
	Date     string          `json:"date" validate:"required,datetime=2006-01-02"`
	Vehicle  string          `json:"vehicle" validate:"max=40"`
	Customer string          `json:"customer" validate:"max=120"`
	Supplier string          `json:"supplier" validate:"max=120"`
	Liters   decimal.Decimal `json:"liters"`
	AmountHT decimal.Decimal `json:"amount_ht"`
	TVARate  *int            `json:"tva_rate" validate:"omitempty,oneof=0 7 10 14 20"`
	PaidCash bool            `json:"paid_cash"`
}

// Handler receives fleet events over HTTP.
type Handler struct {
	hooks     eventHandler
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, hooks eventHandler) *Handler {
	return &Handler{logger: logger, hooks: hooks, validator: httpx.NewValidator()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/fuel-purchases", h.fuel)
	r.Post("/mission-invoices", h.mission)
	r.Post("/maintenance-invoices", h.maintenance)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (eventRequest, bool) {
	var req eventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return req, false
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return req, false
	}
	return req, true
}

func (h *Handler) fuel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	posting, err := h.hooks.HandleFuelPurchased(r.Context(), FuelPurchasedEvent{
		ID: req.ID, Number: req.Number, Date: date, Vehicle: req.Vehicle,
		Liters: req.Liters, AmountHT: req.AmountHT, TVARate: req.TVARate, PaidCash: req.PaidCash,
	})
	h.respond(w, "fuel purchase", posting, err)
}

func (h *Handler) mission(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	posting, err := h.hooks.HandleMissionInvoiced(r.Context(), MissionInvoicedEvent{
		ID: req.ID, Number: req.Number, Date: date, Customer: req.Customer,
		AmountHT: req.AmountHT, TVARate: req.TVARate,
	})
	h.respond(w, "mission invoice", posting, err)
}

func (h *Handler) maintenance(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	date, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	posting, err := h.hooks.HandleMaintenanceInvoiced(r.Context(), MaintenanceInvoicedEvent{
		ID: req.ID, Number: req.Number, Date: date, Vehicle: req.Vehicle, Supplier: req.Supplier,
		AmountHT: req.AmountHT, TVARate: req.TVARate,
	})
	h.respond(w, "maintenance invoice", posting, err)
}

func (h *Handler) respond(w http.ResponseWriter, op string, posting Posting, err error) {
	if err != nil {
		if internalShared.KindOf(err) == nil {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if posting.Replayed || posting.Skipped {
		status = http.StatusOK
	}
	httpx.JSON(w, status, posting)
}
