// Package gemini extracts document text with Google Gemini. It is meant for
// scanned CVs that carry no text layer.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/cv-validator/internal/document"
	"github.com/spigell/cv-validator/internal/logger"
	"github.com/spigell/cv-validator/internal/utils"
)

const (
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
	// maxDocumentSize is the inline request limit of the Gemini API.
	maxDocumentSize = 20 << 20
)

//go:embed prompt.md
var promptTemplate string

var mimeTypes = map[string]string{
	".pdf": "application/pdf",
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the Gemini extractor.
type Config struct {
	APIKey       string
	Model        string
	MaxLogLength int
	// Root is the documents root, see document.Resolver.
	Root string
}

// Extractor transcribes documents through the Gemini API.
type Extractor struct {
	generator contentGenerator
	resolver  document.Resolver
	model     string
	maxLogLen int
	logger    *zap.Logger
}

// New creates a new Extractor configured for the Gemini API backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Extractor, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newExtractor(client.Models, cfg, log), nil
}

func newExtractor(generator contentGenerator, cfg Config, log *zap.Logger) *Extractor {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Extractor{
		generator: generator,
		resolver:  document.Resolver{Root: cfg.Root},
		model:     model,
		maxLogLen: maxLogLen,
		logger:    logger.WithFields(log, zap.String("provider", "gemini"), zap.String("model", model)),
	}
}

// Model returns the configured model name.
func (e *Extractor) Model() string {
	return e.model
}

// Open sends the whole document to Gemini and returns the transcribed pages.
func (e *Extractor) Open(ctx context.Context, ref string) (document.Document, error) {
	path, err := e.resolver.Resolve(ref)
	if err != nil {
		return nil, err
	}

	mimeType, ok := mimeTypes[document.Extension(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", document.ErrUnsupportedType, document.Extension(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("document is empty")
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("document is too large for inline extraction: %d bytes", len(data))
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(promptTemplate),
		}, genai.RoleUser),
	}

	e.logger.Debug("gemini extraction request",
		zap.String(logger.FieldDocument, ref),
		zap.Int("document_bytes", len(data)),
	)

	resp, err := e.generator.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := responseText(resp)
	if raw == "" {
		return nil, errors.New("gemini api returned empty response")
	}

	e.logger.Debug("gemini extraction response",
		zap.String(logger.FieldDocument, ref),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return document.Pages(parsePages(raw)...), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
		// Only the first candidate carries the transcription.
		break
	}

	return strings.TrimSpace(builder.String())
}

// parsePages decodes the {"pages": [...]} answer. Anything else is kept as a
// single page so the text still takes part in the comparison.
func parsePages(raw string) []string {
	cleaned := extractJSON(raw)

	var data struct {
		Pages []string `json:"pages"`
	}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil || data.Pages == nil {
		return []string{raw}
	}

	return data.Pages
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
