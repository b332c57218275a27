package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/callback"
	"github.com/spigell/cv-validator/internal/document"
	"github.com/spigell/cv-validator/internal/document/gemini"
	"github.com/spigell/cv-validator/internal/events"
	"github.com/spigell/cv-validator/internal/metrics"
	"github.com/spigell/cv-validator/internal/secrets"
	"github.com/spigell/cv-validator/internal/validation"
)

const fallbackGemini = "gemini"

// newValidator builds the validator shared by the validate and serve
// commands. The returned cleanup releases the notifiers.
func newValidator(ctx context.Context, config *Config, logger *zap.Logger, m *metrics.Metrics) (*validation.Validator, func(), error) {
	extractor, err := newExtractor(ctx, config, logger)
	if err != nil {
		return nil, nil, err
	}

	notifier, cleanup, err := newNotifier(config, logger, m)
	if err != nil {
		return nil, nil, err
	}

	return validation.New(extractor, notifier, logger, m), cleanup, nil
}

func newExtractor(ctx context.Context, config *Config, logger *zap.Logger) (document.Extractor, error) {
	local := document.NewLocal(config.Documents.Root, logger)

	fallback := strings.TrimSpace(strings.ToLower(config.Extractor.Fallback))
	switch fallback {
	case "":
		logger.Debug("document extractor configured", zap.Strings("formats", local.Formats()))
		return local, nil
	case fallbackGemini:
	default:
		return nil, fmt.Errorf("unsupported extractor fallback: %s", config.Extractor.Fallback)
	}

	gcfg := config.Extractor.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: gcfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set extractor.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	ocr, err := gemini.New(ctx, gemini.Config{
		APIKey:       apiKey,
		Model:        gcfg.Model,
		MaxLogLength: gcfg.MaxLogLength,
		Root:         config.Documents.Root,
	}, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("ocr fallback enabled", zap.String("provider", fallbackGemini), zap.String("model", ocr.Model()))

	return document.Fallback(local, ocr, logger), nil
}

func newNotifier(config *Config, logger *zap.Logger, m *metrics.Metrics) (validation.Notifier, func(), error) {
	token, err := secrets.Lookup(secrets.Source{
		Name: "callback token",
		File: config.Callback.TokenFile,
		Env:  envPrefix + "_CALLBACK_TOKEN",
	})
	if err != nil {
		return nil, nil, err
	}

	client, err := callback.New(callback.Config{
		BaseURL:   config.Callback.BaseURL,
		Token:     token,
		UserAgent: config.Callback.UserAgent,
		Timeout:   config.Callback.Timeout,
	}, logger, m)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set callback.base-url, CV_VALIDATOR_CALLBACK_BASE_URL or TRPC_ENDPOINT)", err)
	}

	logger.Debug("callback configured", zap.String("endpoint", client.Endpoint()))

	publisher := events.New(events.Config{
		Enabled:   config.Kafka.Enabled,
		Brokers:   config.Kafka.Brokers,
		Topic:     config.Kafka.Topic,
		Principal: config.Kafka.Principal,
	}, logger, m)

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("closing kafka publisher", zap.Error(err))
		}
	}

	if !publisher.Enabled() {
		return client, cleanup, nil
	}

	return validation.Notifiers{client, validation.BestEffort("kafka", publisher, logger)}, cleanup, nil
}
