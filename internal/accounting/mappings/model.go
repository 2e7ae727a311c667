package mappings

import "time"

// Modules emitting business events that map onto ledger accounts.
const (
	ModuleFuel        = "FUEL"
	ModuleMission     = "MISSION"
	ModuleMaintenance = "MAINTENANCE"
)

// AccountMapping links an integration key to a ledger account.
type AccountMapping struct {
	Module    string    `json:"module"`
	Key       string    `json:"key"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
