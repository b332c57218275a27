// Package document turns document references into page text.
package document

import (
	"context"
	"errors"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned when a document reference does not resolve to a file.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupportedType is returned for documents no extractor can read.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrOutsideRoot is returned for references escaping the configured documents root.
	ErrOutsideRoot = errors.New("document reference is outside the documents root")
	// ErrPagesConsumed is yielded when the pages of a document are ranged over twice.
	ErrPagesConsumed = errors.New("document pages already consumed")
)

// Extractor opens documents for text extraction.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Open(ctx context.Context, ref string) (Document, error)
}

// Document is an opened document. Pages yields page texts in page order and
// may be ranged over only once. Close releases the underlying resources and
// must be called on every path.
type Document interface {
	Pages() iter.Seq2[string, error]
	Close() error
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, ref string) (Document, error)

func (f ExtractorFunc) Open(ctx context.Context, ref string) (Document, error) {
	return f(ctx, ref)
}

// PageSeparator joins page texts so that words on adjacent pages never merge.
const PageSeparator = "\n"

// ReadText drains the document pages and joins them with PageSeparator.
func ReadText(doc Document) (string, error) {
	var b strings.Builder
	first := true
	for text, err := range doc.Pages() {
		if err != nil {
			return "", err
		}
		if !first {
			b.WriteString(PageSeparator)
		}
		b.WriteString(text)
		first = false
	}
	return b.String(), nil
}

// Pages returns an in-memory Document over already extracted page texts.
func Pages(pages ...string) Document {
	return &sliceDocument{pages: pages}
}

type sliceDocument struct {
	pages    []string
	consumed bool
	close    func() error
}

func (d *sliceDocument) Pages() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if d.consumed {
			yield("", ErrPagesConsumed)
			return
		}
		d.consumed = true

		for _, page := range d.pages {
			if !yield(page, nil) {
				return
			}
		}
	}
}

func (d *sliceDocument) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

func blank(pages []string) bool {
	for _, page := range pages {
		if strings.TrimSpace(page) != "" {
			return false
		}
	}
	return true
}
