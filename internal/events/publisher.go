// Package events publishes validation results to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/logger"
	"github.com/spigell/cv-validator/internal/metrics"
	"github.com/spigell/cv-validator/internal/validation"
)

const (
	// EventType is sent in the eventType header of every message.
	EventType = "cv.validation.result"

	// DefaultTopic receives result events when no topic is configured.
	DefaultTopic = "cv.validation.results"

	name = "kafka"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Principal string
}

// writer is the subset of *kafka.Writer the publisher needs.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher delivers validation results as Kafka events. A disabled
// publisher only logs the events it would have sent.
type Publisher struct {
	writer    writer
	topic     string
	principal string
	enabled   bool
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a Publisher. Without brokers or when disabled it runs in
// log-only mode.
func New(cfg Config, log *zap.Logger, m *metrics.Metrics) *Publisher {
	log = logger.WithFields(log, zap.String(logger.FieldNotifier, name))

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	p := &Publisher{
		topic:     topic,
		principal: cfg.Principal,
		logger:    log,
		metrics:   m,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info("kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			Dial: dialer.DialFunc,
		},
	}
	p.enabled = true

	log.Info("kafka publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic),
		zap.String("principal", cfg.Principal),
	)

	return p
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Deliver publishes the result keyed by its submission ID.
func (p *Publisher) Deliver(ctx context.Context, result *validation.Result) error {
	start := time.Now()
	err := p.publish(ctx, result)
	p.metrics.RecordDelivery(name, err, time.Since(start).Seconds())
	return err
}

func (p *Publisher) publish(ctx context.Context, result *validation.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}

	log := p.logger.With(
		zap.String(logger.FieldSubmission, result.SubmissionID),
		zap.String("topic", p.topic),
	)
	log.Debug("publishing result event", zap.ByteString("payload", payload))

	if !p.enabled || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(result.SubmissionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(EventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error("failed to write result event", zap.Error(err))
		return fmt.Errorf("write result event: %w", err)
	}

	return nil
}

// Close flushes and closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return errors.Join(errors.New("close kafka writer"), err)
	}
	return nil
}
