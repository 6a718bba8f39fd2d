package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("payroll: invalid input")
	ErrRunNotFound       = errors.New("payroll: run not found")
	ErrItemNotFound      = errors.New("payroll: line item not found")
	ErrInvalidTransition = errors.New("payroll: invalid run status transition")
	ErrWeekEndingFrozen  = errors.New("payroll: week ending is frozen once the run leaves draft")
	ErrItemFrozen        = errors.New("payroll: line items are frozen once the run leaves draft")
	ErrNotCalculated     = errors.New("payroll: line item has no computed pay")
	ErrRunNotFinalized   = errors.New("payroll: run must be finalized before export")
	ErrRunChanged        = errors.New("payroll: run status changed concurrently")
)

// ValidationError names the item and field that failed validation.
type ValidationError struct {
	Item   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("payroll: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("payroll: item %s: %s: %s", e.Item, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationErrors collects every invalid field of one item.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", errs[0].Error(), len(errs)-1)
}

func (errs ValidationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = err
	}
	return out
}

// ItemError reports the item an export stopped at.
type ItemError struct {
	Index  int
	ItemID string
	Field  string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %s: %v", e.Index+1, e.ItemID, e.Field, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// RequireCalculated returns an *ItemError for the first item without computed pay.
func RequireCalculated(items []LineItem) error {
	for i, item := range items {
		if !item.Calculated() {
			return &ItemError{Index: i, ItemID: item.Label(), Field: FieldComputed, Err: ErrNotCalculated}
		}
	}
	return nil
}
