package validation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/logger"
)

// Notifier delivers validation results to the party waiting for them.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Deliver(ctx context.Context, result *Result) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, result *Result) error

func (f NotifierFunc) Deliver(ctx context.Context, result *Result) error {
	return f(ctx, result)
}

// Notifiers delivers a result to every notifier in order. All notifiers are
// tried; their errors are joined.
type Notifiers []Notifier

func (n Notifiers) Deliver(ctx context.Context, result *Result) error {
	var errs []error
	for _, notifier := range n {
		if err := notifier.Deliver(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort wraps a secondary notifier whose failures are logged and never
// returned, so they cannot fail a delivery that already reached the primary
// notifier.
func BestEffort(name string, notifier Notifier, log *zap.Logger) Notifier {
	log = logger.WithFields(log, zap.String(logger.FieldNotifier, name))

	return NotifierFunc(func(ctx context.Context, result *Result) error {
		if err := notifier.Deliver(ctx, result); err != nil {
			log.Warn("best-effort delivery failed",
				zap.String(logger.FieldSubmission, result.SubmissionID),
				zap.Error(err),
			)
		}
		return nil
	})
}
