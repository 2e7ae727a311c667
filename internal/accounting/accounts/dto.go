package accounts

import (
	"strings"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// CreateInput describes a new chart of accounts node.
type CreateInput struct {
	Code       string
	Name       string
	Class      Class
	Nature     Nature
	Type       Type
	ParentCode *string
	ActorID    int64
}

// Normalize trims textual fields in place.
func (in *CreateInput) Normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.ParentCode != nil {
		parent := strings.TrimSpace(*in.ParentCode)
		if parent == "" {
			in.ParentCode = nil
		} else {
			in.ParentCode = &parent
		}
	}
}

// Validate checks the rules that need no stored data.
func (in CreateInput) Validate() error {
	if in.Code == "" {
		return internalShared.ValidationError(shared.ErrInvalidAccount, "code required")
	}
	if in.Name == "" {
		return internalShared.ValidationError(shared.ErrInvalidAccount, "name required")
	}
	if !in.Class.Valid() {
		return internalShared.ValidationError(shared.ErrInvalidAccount, "class %d outside 1..7", in.Class)
	}
	if in.Nature != NatureDebit && in.Nature != NatureCredit {
		return internalShared.ValidationError(shared.ErrInvalidAccount, "nature %q must be debit or credit", in.Nature)
	}
	if in.Type != TypeDetail && in.Type != TypeTitle {
		return internalShared.ValidationError(shared.ErrInvalidAccount, "type %q must be detail or title", in.Type)
	}
	if lead := in.Code[0]; lead >= '0' && lead <= '9' && Class(lead-'0') != in.Class {
		return internalShared.ValidationError(shared.ErrInvalidAccount, "code %s does not belong to class %d", in.Code, in.Class)
	}
	if in.ParentCode != nil {
		parent := *in.ParentCode
		if parent == in.Code || !strings.HasPrefix(in.Code, parent) {
			return internalShared.ValidationError(shared.ErrInvalidAccount, "parent %s must be a strict prefix of %s", parent, in.Code)
		}
	}
	return nil
}

type createAccountRequest struct {
	Code       string  `json:"code" validate:"required,max=20"`
	Name       string  `json:"name" validate:"required,max=200"`
	Class      int     `json:"class" validate:"required,min=1,max=7"`
	Nature     string  `json:"nature" validate:"required,oneof=debit credit"`
	Type       string  `json:"type" validate:"required,oneof=detail title"`
	ParentCode *string `json:"parent_code" validate:"omitempty,max=20"`
}

func (r createAccountRequest) toInput(actorID int64) CreateInput {
	return CreateInput{
		Code:       r.Code,
		Name:       r.Name,
		Class:      Class(r.Class),
		Nature:     Nature(r.Nature),
		Type:       Type(r.Type),
		ParentCode: r.ParentCode,
		ActorID:    actorID,
	}
}
