package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/rollcall/core/drill"
	"github.com/trezcool/rollcall/core/roster"
)

type ToggleRequest struct {
	PersonID int             `json:"person_id" validate:"required"`
	Category roster.Category `json:"category" validate:"required,category"`
}

func (r *ToggleRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type ResetRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=500"`
}

func (r *ResetRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type ResetResponse struct {
	OK bool `json:"ok"`
}

type BoardResponse struct {
	People  []drill.Person `json:"people"`
	Stats   drill.Stats    `json:"stats"`
	Classes []string       `json:"classes"`
	Error   string         `json:"error,omitempty"`
}
