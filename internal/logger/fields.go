package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldSubmission is the structured log field key for the submission identifier.
	FieldSubmission = "submission_id"
	// FieldDocument is the structured log field key for the document reference.
	FieldDocument = "document"
	// FieldNotifier is the structured log field key for the notifier name.
	FieldNotifier = "notifier"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger.
// A nil logger is replaced with a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// SubmissionFields returns the fields identifying one validation request.
func SubmissionFields(submissionID, document string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSubmission, Value: submissionID},
		StringField{Key: FieldDocument, Value: document},
	)
}

// WithSubmission attaches the submission fields to the provided logger.
func WithSubmission(logger *zap.Logger, submissionID, document string) *zap.Logger {
	return WithFields(logger, SubmissionFields(submissionID, document)...)
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
