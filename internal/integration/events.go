package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source types stamped on entries drafted from fleet events.
const (
	SourceFuelPurchase       = "fuel.purchase"
	SourceMissionInvoice     = "mission.invoice"
	SourceMaintenanceInvoice = "maintenance.invoice"
)

// Rates applied when an event carries none. A zero rate is kept as exempt.
const (
	DefaultFuelRate        = 10
	DefaultMissionRate     = 14
	DefaultMaintenanceRate = 20
)

// FuelPurchasedEvent is emitted when a fuel voucher is booked for a vehicle.
type FuelPurchasedEvent struct {
	ID       int64
	Number   string
	Date     time.Time
	Vehicle  string
	Liters   decimal.Decimal
	AmountHT decimal.Decimal
	TVARate  *int
	PaidCash bool
}

// MissionInvoicedEvent is emitted when a transport mission is billed to a customer.
type MissionInvoicedEvent struct {
	ID       int64
	Number   string
	Date     time.Time
	Customer string
	AmountHT decimal.Decimal
	TVARate  *int
}

// MaintenanceInvoicedEvent is emitted when a garage invoice for a vehicle is received.
type MaintenanceInvoicedEvent struct {
	ID       int64
	Number   string
	Date     time.Time
	Vehicle  string
	Supplier string
	AmountHT decimal.Decimal
	TVARate  *int
}
