package worker

import (
	"context"

	"github.com/spigell/cv-validator/internal/validation"
)

// CVValidateAgent is the agent name of the CV validation task.
const CVValidateAgent = "cv-validate"

// Validator validates a submission and delivers its result.
type Validator interface {
	Validate(ctx context.Context, submissionID, documentRef string, claims validation.Claims) (*validation.Result, error)
}

// CVValidatePayload is the payload accepted by the cv-validate agent.
type CVValidatePayload struct {
	SubmissionID   string         `mapstructure:"submissionId" validate:"notblank"`
	PDFPath        string         `mapstructure:"pdfPath" validate:"notblank"`
	StructuredData map[string]any `mapstructure:"structuredData"`
}

// CVValidateTask runs the validator synchronously.
type CVValidateTask struct {
	validator Validator
}

// NewCVValidateTask creates the cv-validate task.
func NewCVValidateTask(v Validator) *CVValidateTask {
	return &CVValidateTask{validator: v}
}

func (t *CVValidateTask) Name() string {
	return CVValidateAgent
}

// Run validates the submission. On delivery failure the result is
// returned along with the error.
func (t *CVValidateTask) Run(ctx context.Context, payload map[string]any) (any, error) {
	var p CVValidatePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	result, err := t.validator.Validate(ctx, p.SubmissionID, p.PDFPath, validation.Claims(p.StructuredData))
	if result == nil {
		return nil, err
	}
	return result, err
}
