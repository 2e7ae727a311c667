package journals

import "time"

// JournalType classifies books by the flows they record.
type JournalType string

const (
	JournalTypePurchases JournalType = "purchases"
	JournalTypeSales     JournalType = "sales"
	JournalTypeBank      JournalType = "bank"
	JournalTypeCash      JournalType = "cash"
	JournalTypeGeneral   JournalType = "general"
)

// Valid reports whether t is a known journal type.
func (t JournalType) Valid() bool {
	switch t {
	case JournalTypePurchases, JournalTypeSales, JournalTypeBank, JournalTypeCash, JournalTypeGeneral:
		return true
	}
	return false
}

// Journal is a book entries are recorded in. Immutable once created.
type Journal struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      JournalType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}
