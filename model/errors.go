package model

import "fmt"

// InvalidInputError reports a malformed program or model input. It signals a
// programming error on the caller's side and is never retried.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// DuplicateVariableError reports two decision variables sharing one name.
type DuplicateVariableError struct {
	Name string
}

func (e *DuplicateVariableError) Error() string {
	return fmt.Sprintf("duplicate variable name %q", e.Name)
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
