// Package callback delivers validation results to the web application.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/logger"
	"github.com/spigell/cv-validator/internal/metrics"
	"github.com/spigell/cv-validator/internal/utils"
	"github.com/spigell/cv-validator/internal/validation"
)

const (
	// Path is appended to the configured base URL.
	Path = "/validate-callback"

	name             = "callback"
	contentType      = "application/json"
	defaultUserAgent = "spigell/cv-validator"
	defaultTimeout   = 10 * time.Second
	maxBodyLogLength = 200
)

// ErrBaseURLRequired is returned when no callback base URL is configured.
var ErrBaseURLRequired = errors.New("callback base url is not configured")

// Config configures the callback client.
type Config struct {
	// BaseURL is the web application endpoint, e.g. http://web:3000/api.
	BaseURL string
	// Token is sent as a bearer token when set.
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// Client posts validation results to {BaseURL}/validate-callback.
type Client struct {
	endpoint   string
	token      string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	HTTPClient *http.Client
	UserAgent  string
}

// New creates a Client. The base URL must be an absolute http(s) URL.
func New(cfg Config, log *zap.Logger, m *metrics.Metrics) (*Client, error) {
	endpoint, err := endpointURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.Token),
		logger:   logger.WithFields(log, zap.String(logger.FieldNotifier, name)),
		metrics:  m,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
	}, nil
}

func endpointURL(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", ErrBaseURLRequired
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse callback base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("callback base url must be http or https, got %q", base)
	}
	if u.Host == "" {
		return "", fmt.Errorf("callback base url has no host: %q", base)
	}

	return strings.TrimRight(base, "/") + Path, nil
}

// Endpoint returns the full callback URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Deliver posts the result. The response status is logged but not
// interpreted; only transport failures are returned.
func (c *Client) Deliver(ctx context.Context, result *validation.Result) error {
	start := time.Now()
	err := c.post(ctx, result)
	c.metrics.RecordDelivery(name, err, time.Since(start).Seconds())
	return err
}

func (c *Client) post(ctx context.Context, result *validation.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal callback body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}

	req = c.setHeaders(req)

	log := c.logger.With(zap.String(logger.FieldSubmission, result.SubmissionID))
	log.Debug("posting validation result",
		zap.String("url", c.endpoint),
		zap.String("body", utils.TruncateForLog(string(body), maxBodyLogLength)),
	)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("callback answered with unexpected status", zap.String("status", resp.Status))
		return nil
	}

	log.Debug("callback accepted", zap.String("status", resp.Status))

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	return req
}
