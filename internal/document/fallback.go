package document

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/logger"
)

type fallbackExtractor struct {
	primary   Extractor
	secondary Extractor
	logger    *zap.Logger
}

// Fallback returns an extractor that reads documents with primary and, when
// every page comes back blank, extracts them again with secondary. This covers
// scanned PDFs without a text layer. A nil secondary returns primary as is.
func Fallback(primary, secondary Extractor, log *zap.Logger) Extractor {
	if secondary == nil {
		return primary
	}
	return &fallbackExtractor{
		primary:   primary,
		secondary: secondary,
		logger:    logger.OrNop(log),
	}
}

func (f *fallbackExtractor) Open(ctx context.Context, ref string) (Document, error) {
	pages, err := collect(ctx, f.primary, ref)
	if err != nil {
		return nil, err
	}

	if !blank(pages) {
		return Pages(pages...), nil
	}

	f.logger.Info("document has no text layer, using fallback extractor",
		zap.String(logger.FieldDocument, ref),
		zap.Int("pages", len(pages)),
	)

	doc, err := f.secondary.Open(ctx, ref)
	if errors.Is(err, ErrUnsupportedType) {
		return Pages(pages...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fallback extraction: %w", err)
	}

	return doc, nil
}

func collect(ctx context.Context, extractor Extractor, ref string) (pages []string, err error) {
	doc, err := extractor.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close document: %w", closeErr)
		}
	}()

	for text, err := range doc.Pages() {
		if err != nil {
			return nil, err
		}
		pages = append(pages, text)
	}

	return pages, nil
}
