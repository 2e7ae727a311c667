package journals

import (
	"strings"

	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// CreateInput groups fields required to register a journal.
type CreateInput struct {
	Code string
	Name string
	Type JournalType
}

// Validate ensures the journal definition meets minimum criteria.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return internalShared.ValidationError(nil, "journal code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return internalShared.ValidationError(nil, "journal name required")
	}
	if !in.Type.Valid() {
		return internalShared.ValidationError(nil, "journal type %q unsupported", in.Type)
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type createJournalRequest struct {
	Code string `json:"code" validate:"required,max=10"`
	Name string `json:"name" validate:"required,max=120"`
	Type string `json:"type" validate:"required,oneof=purchases sales bank cash general"`
}
