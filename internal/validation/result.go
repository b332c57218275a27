package validation

import "encoding/json"

// Status is the outcome of a validation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// NotFound is reported for claims absent from the document text.
const NotFound = "Not found"

// ErrorKey is the synthetic mismatch key carrying the failure description
// when the validation itself could not run.
const ErrorKey = "error"

// Mismatch describes a claim the document does not substantiate.
type Mismatch struct {
	// Expected is the claimed value as it was submitted, not its string form.
	Expected any    `json:"expected"`
	Found    string `json:"found"`
}

// Result is the outcome of one validation. Exactly one of Mismatches and Err
// describes a failure: Err is set when the document could not be checked at
// all, Mismatches when it was checked and some claims were not found.
type Result struct {
	SubmissionID string
	Status       Status
	Mismatches   map[string]Mismatch
	Err          error
}

func newResult(submissionID string, mismatches map[string]Mismatch) *Result {
	status := StatusSuccess
	if len(mismatches) > 0 {
		status = StatusFailed
	}
	if mismatches == nil {
		mismatches = map[string]Mismatch{}
	}
	return &Result{
		SubmissionID: submissionID,
		Status:       status,
		Mismatches:   mismatches,
	}
}

func failedResult(submissionID string, err error) *Result {
	return &Result{
		SubmissionID: submissionID,
		Status:       StatusFailed,
		Mismatches:   map[string]Mismatch{},
		Err:          err,
	}
}

// Succeeded reports whether every claim was found.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// MismatchPayload returns the wire form of the mismatches: field name to
// Mismatch, or a single "error" entry holding the failure description.
func (r *Result) MismatchPayload() map[string]any {
	if r.Err != nil {
		return map[string]any{ErrorKey: r.Err.Error()}
	}

	payload := make(map[string]any, len(r.Mismatches))
	for field, mismatch := range r.Mismatches {
		payload[field] = mismatch
	}
	return payload
}

type wireResult struct {
	SubmissionID string         `json:"submissionId"`
	Status       Status         `json:"status"`
	Mismatches   map[string]any `json:"mismatches"`
}

// MarshalJSON encodes the callback body:
// {"submissionId": ..., "status": ..., "mismatches": {...}}.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResult{
		SubmissionID: r.SubmissionID,
		Status:       r.Status,
		Mismatches:   r.MismatchPayload(),
	})
}
