package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/transitops/fleet-ledger/internal/accounting/entries"
	"github.com/transitops/fleet-ledger/internal/accounting/mappings"
	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Journal codes receiving drafted entries.
const (
	PurchaseJournal = "ACH"
	SalesJournal    = "VTE"
)

// Ledger drafts entries on behalf of integrations.
type Ledger interface {
	Create(ctx context.Context, in entries.CreateInput) (entries.Entry, error)
}

// AccountMappingRepository provides mapping and journal lookups.
type AccountMappingRepository interface {
	Get(ctx context.Context, module, key string) (mappings.AccountMapping, error)
	JournalIDByCode(ctx context.Context, code string) (int64, error)
}

// Posting reports what a hook did with an event.
type Posting struct {
	EntryID     int64  `json:"entry_id,omitempty"`
	EntryNumber string `json:"entry_number,omitempty"`
	// Replayed is set when the event was already drafted.
	Replayed bool `json:"replayed"`
	// Skipped is set when the event carries no amount.
	Skipped bool `json:"skipped"`
}

// Hooks turns fleet business events into draft ledger entries. Entries are
// never validated here; an accountant reviews them first.
type Hooks struct {
	ledger      Ledger
	mappingRepo AccountMappingRepository
	logger      *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, mappingRepo AccountMappingRepository, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, mappingRepo: mappingRepo, logger: logger}
}

func (h *Hooks) resolveAccounts(ctx context.Context, module string, keys ...string) ([]int64, error) {
	ids := make([]int64, len(keys))
	for i, key := range keys {
		mapping, err := h.mappingRepo.Get(ctx, module, key)
		if err != nil {
			return nil, err
		}
		ids[i] = mapping.AccountID
	}
	return ids, nil
}

func checkAmount(label string, ht decimal.Decimal) error {
	if ht.IsNegative() {
		return internalShared.ValidationError(shared.ErrNegativeAmount, "%s amount %s", label, ht)
	}
	if !shared.HasCentPrecision(ht) {
		return internalShared.ValidationError(shared.ErrAmountPrecision, "%s amount %s", label, ht)
	}
	return nil
}

func (h *Hooks) post(ctx context.Context, journalCode string, input entries.CreateInput) (Posting, error) {
	journalID, err := h.mappingRepo.JournalIDByCode(ctx, journalCode)
	if err != nil {
		return Posting{}, err
	}
	input.JournalID = journalID
	entry, err := h.ledger.Create(ctx, input)
	if err != nil {
		if errors.Is(err, shared.ErrSourceAlreadyLinked) {
			h.logger.Info("integration event already drafted",
				slog.String("source_type", *input.SourceType), slog.Int64("source_id", *input.SourceID))
			return Posting{Replayed: true}, nil
		}
		return Posting{}, err
	}
	return Posting{EntryID: entry.ID, EntryNumber: entry.EntryNumber}, nil
}

func source(kind string, id int64) (*string, *int64) {
	return &kind, &id
}

// HandleFuelPurchased drafts the purchase entry of a fuel voucher.
func (h *Hooks) HandleFuelPurchased(ctx context.Context, evt FuelPurchasedEvent) (Posting, error) {
	if evt.ID <= 0 || evt.Date.IsZero() {
		return Posting{}, internalShared.ValidationError(nil, "fuel purchase id and date required")
	}
	if err := checkAmount("fuel purchase", evt.AmountHT); err != nil {
		return Posting{}, err
	}
	if evt.AmountHT.IsZero() {
		return Posting{Skipped: true}, nil
	}
	payableKey := "fuel.payable"
	if evt.PaidCash {
		payableKey = "fuel.cash"
	}
	ids, err := h.resolveAccounts(ctx, mappings.ModuleFuel, "fuel.expense", "fuel.vat", payableKey)
	if err != nil {
		return Posting{}, err
	}
	label := fmt.Sprintf("Carburant %s", evt.Number)
	if evt.Vehicle != "" {
		label += " " + evt.Vehicle
	}
	sourceType, sourceID := source(SourceFuelPurchase, evt.ID)
	return h.post(ctx, PurchaseJournal, entries.CreateInput{
		EntryNumber: "CARB-" + evt.Number,
		EntryDate:   evt.Date,
		Description: label,
		Reference:   &evt.Number,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Lines:       purchaseLines(ids[0], ids[1], ids[2], label, evt.AmountHT, rateOr(evt.TVARate, DefaultFuelRate)),
	})
}

// HandleMissionInvoiced drafts the sales entry of a billed mission.
func (h *Hooks) HandleMissionInvoiced(ctx context.Context, evt MissionInvoicedEvent) (Posting, error) {
	if evt.ID <= 0 || evt.Date.IsZero() {
		return Posting{}, internalShared.ValidationError(nil, "mission invoice id and date required")
	}
	if err := checkAmount("mission invoice", evt.AmountHT); err != nil {
		return Posting{}, err
	}
	if evt.AmountHT.IsZero() {
		return Posting{Skipped: true}, nil
	}
	ids, err := h.resolveAccounts(ctx, mappings.ModuleMission, "mission.receivable", "mission.revenue", "mission.vat")
	if err != nil {
		return Posting{}, err
	}
	label := fmt.Sprintf("Facture %s", evt.Number)
	if evt.Customer != "" {
		label += " " + evt.Customer
	}
	sourceType, sourceID := source(SourceMissionInvoice, evt.ID)
	return h.post(ctx, SalesJournal, entries.CreateInput{
		EntryNumber: "FAC-" + evt.Number,
		EntryDate:   evt.Date,
		Description: label,
		Reference:   &evt.Number,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Lines:       saleLines(ids[0], ids[1], ids[2], label, evt.AmountHT, rateOr(evt.TVARate, DefaultMissionRate)),
	})
}

// HandleMaintenanceInvoiced drafts the purchase entry of a garage invoice.
func (h *Hooks) HandleMaintenanceInvoiced(ctx context.Context, evt MaintenanceInvoicedEvent) (Posting, error) {
	if evt.ID <= 0 || evt.Date.IsZero() {
		return Posting{}, internalShared.ValidationError(nil, "maintenance invoice id and date required")
	}
	if err := checkAmount("maintenance invoice", evt.AmountHT); err != nil {
		return Posting{}, err
	}
	if evt.AmountHT.IsZero() {
		return Posting{Skipped: true}, nil
	}
	ids, err := h.resolveAccounts(ctx, mappings.ModuleMaintenance, "maintenance.expense", "maintenance.vat", "maintenance.payable")
	if err != nil {
		return Posting{}, err
	}
	label := fmt.Sprintf("Entretien %s", evt.Number)
	if evt.Vehicle != "" {
		label += " " + evt.Vehicle
	}
	sourceType, sourceID := source(SourceMaintenanceInvoice, evt.ID)
	return h.post(ctx, PurchaseJournal, entries.CreateInput{
		EntryNumber: "ENT-" + evt.Number,
		EntryDate:   evt.Date,
		Description: label,
		Reference:   &evt.Number,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Lines:       purchaseLines(ids[0], ids[1], ids[2], label, evt.AmountHT, rateOr(evt.TVARate, DefaultMaintenanceRate)),
	})
}
