// Package validation checks claimed CV field values against the text of the
// source document and reports the outcome.
package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/document"
	"github.com/spigell/cv-validator/internal/logger"
	"github.com/spigell/cv-validator/internal/metrics"
	"github.com/spigell/cv-validator/internal/utils"
)

const textPreviewLength = 120

// Validator checks submissions against their documents. It keeps no state
// between calls and may be used concurrently as long as its collaborators
// allow it.
type Validator struct {
	extractor document.Extractor
	notifier  Notifier
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a Validator. The logger and metrics may be nil.
func New(extractor document.Extractor, notifier Notifier, log *zap.Logger, m *metrics.Metrics) *Validator {
	return &Validator{
		extractor: extractor,
		notifier:  notifier,
		logger:    logger.OrNop(log),
		metrics:   m,
	}
}

// Validate checks the claims against the document and delivers the result
// through the notifier exactly once.
//
// Failures to read the document or to interpret a claim never surface as an
// error: they produce a FAILED result carrying the failure description, which
// is delivered like any other result. The only error returned after the
// submission is accepted is a *DeliveryError.
func (v *Validator) Validate(ctx context.Context, submissionID, documentRef string, claims Claims) (*Result, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, ErrMissingSubmissionID
	}

	log := logger.WithSubmission(v.logger, submissionID, documentRef)
	log.Info("validating submission", zap.Int("claims", len(claims)))

	result := v.Check(ctx, submissionID, documentRef, claims)

	if err := v.notifier.Deliver(ctx, result); err != nil {
		log.Error("delivering validation result",
			zap.String("status", string(result.Status)),
			zap.Error(err),
		)
		return result, &DeliveryError{Result: result, Err: err}
	}

	log.Info("validation result delivered", zap.String("status", string(result.Status)))

	return result, nil
}

// Check runs the validation without delivering the result. It never panics
// and never returns a nil result.
func (v *Validator) Check(ctx context.Context, submissionID, documentRef string, claims Claims) (result *Result) {
	log := logger.WithSubmission(v.logger, submissionID, documentRef)

	defer func() {
		if r := recover(); r != nil {
			result = failedResult(submissionID, fmt.Errorf("validation aborted: %v", r))
		}
		v.record(log, result)
	}()

	text, err := v.readText(ctx, documentRef)
	if err != nil {
		return failedResult(submissionID, err)
	}

	log.Debug("document text extracted",
		zap.Int("text_length", utf8.RuneCountInString(text)),
		zap.String("text_preview", utils.TruncateForLog(text, textPreviewLength)),
	)

	mismatches, err := Compare(text, claims)
	if err != nil {
		return failedResult(submissionID, err)
	}

	return newResult(submissionID, mismatches)
}

func (v *Validator) readText(ctx context.Context, ref string) (text string, err error) {
	start := time.Now()
	defer func() {
		v.metrics.ObserveExtraction(time.Since(start).Seconds())
	}()

	doc, err := v.extractor.Open(ctx, ref)
	if err != nil {
		return "", &DocumentAccessError{Ref: ref, Err: err}
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil && err == nil {
			err = &DocumentAccessError{Ref: ref, Err: fmt.Errorf("close document: %w", closeErr)}
		}
	}()

	text, err = document.ReadText(doc)
	if err != nil {
		return "", &DocumentAccessError{Ref: ref, Err: err}
	}

	return text, nil
}

func (v *Validator) record(log *zap.Logger, result *Result) {
	if result.Err != nil {
		kind := failureKind(result.Err)
		v.metrics.RecordFailure(kind)
		v.metrics.RecordValidation(string(result.Status), 0)
		log.Warn("document could not be validated",
			zap.String("kind", kind),
			zap.Error(result.Err),
		)
		return
	}

	fields := make([]string, 0, len(result.Mismatches))
	for field := range result.Mismatches {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	v.metrics.RecordValidation(string(result.Status), len(result.Mismatches))
	log.Info("validation completed",
		zap.String("status", string(result.Status)),
		zap.Strings("mismatched_fields", fields),
	)
}

func failureKind(err error) string {
	var claimErr *ClaimValueError
	switch {
	case errors.As(err, &claimErr):
		return "claim_value"
	case errors.Is(err, document.ErrNotFound):
		return "not_found"
	case errors.Is(err, document.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, document.ErrOutsideRoot):
		return "outside_root"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		var accessErr *DocumentAccessError
		if errors.As(err, &accessErr) {
			return "extraction"
		}
		return "internal"
	}
}
