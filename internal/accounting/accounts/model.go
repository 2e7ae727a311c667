package accounts

import "time"

// Class is the CGNC account class, 1 through 7.
type Class int

// Account classes of the Moroccan chart of accounts.
const (
	ClassFinancing          Class = 1
	ClassFixedAssets        Class = 2
	ClassCurrentAssets      Class = 3
	ClassCurrentLiabilities Class = 4
	ClassTreasury           Class = 5
	ClassExpenses           Class = 6
	ClassRevenue            Class = 7
)

var classLabels = map[Class]string{
	ClassFinancing:          "Financing",
	ClassFixedAssets:        "Fixed assets",
	ClassCurrentAssets:      "Current assets",
	ClassCurrentLiabilities: "Current liabilities",
	ClassTreasury:           "Treasury",
	ClassExpenses:           "Expenses",
	ClassRevenue:            "Revenue",
}

// Valid reports whether c is within 1..7.
func (c Class) Valid() bool {
	return c >= ClassFinancing && c <= ClassRevenue
}

// Label returns the display label of the class.
func (c Class) Label() string {
	return classLabels[c]
}

// Nature is the side on which the account normally carries its balance.
type Nature string

const (
	NatureDebit  Nature = "debit"
	NatureCredit Nature = "credit"
)

// Type separates postable accounts from grouping headers.
type Type string

const (
	// TypeDetail accounts accept entry lines.
	TypeDetail Type = "detail"
	// TypeTitle accounts only group detail accounts sharing their code prefix.
	TypeTitle Type = "title"
)

// Account models a chart of accounts node.
type Account struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Class      Class     `json:"class"`
	Nature     Nature    `json:"nature"`
	Type       Type      `json:"type"`
	ParentCode *string   `json:"parent_code,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Postable reports whether lines may reference the account.
func (a Account) Postable() bool {
	return a.Type == TypeDetail && a.IsActive
}

// ListFilter narrows account listings.
type ListFilter struct {
	Class      *Class
	ActiveOnly bool
}
