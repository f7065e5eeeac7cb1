package errs

import (
	"errors"
)

var (
	// ErrNotFound — unknown equipment or reservation uid.
	ErrNotFound = errors.New("not found")
	// ErrInactive — equipment exists but is soft-deleted.
	ErrInactive = errors.New("equipment is inactive")
	// ErrValidation — bad quantity or non-future due date.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock — the ledger's check-and-decrement found fewer
	// units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrAlreadyProcessed — the reservation left PENDING before this
	// approve/reject arrived; safe to surface on retries.
	ErrAlreadyProcessed = errors.New("reservation already processed")
	// ErrInvalidTransition — transition not defined for the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type ValidationErrorResponse struct {
	Message string `json:"message"`
	Errors  struct {
		AdditionalProperties string `json:"additionalProperties"`
	} `json:"errors"`
}
