package validation

import (
	"errors"
	"fmt"
)

// ErrMissingSubmissionID is returned when Validate is called without a submission ID.
var ErrMissingSubmissionID = errors.New("submission id is required")

// DocumentAccessError reports a document that could not be opened or read.
type DocumentAccessError struct {
	Ref string
	Err error
}

func (e *DocumentAccessError) Error() string {
	return fmt.Sprintf("document %q: %v", e.Ref, e.Err)
}

func (e *DocumentAccessError) Unwrap() error {
	return e.Err
}

// ClaimValueError reports a claimed value without a string representation.
type ClaimValueError struct {
	Field string
	Value any
}

func (e *ClaimValueError) Error() string {
	return fmt.Sprintf("claim %q: unsupported value type %T", e.Field, e.Value)
}

// DeliveryError reports a result that could not be handed to the notifier.
type DeliveryError struct {
	Result *Result
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver result for submission %s: %v", e.Result.SubmissionID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
