package document

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/logger"
)

type opener func(ctx context.Context, path string) (Document, error)

// Local extracts text from documents stored on the local filesystem. The
// format is picked by file extension.
type Local struct {
	resolver Resolver
	formats  map[string]opener
	logger   *zap.Logger
}

// NewLocal creates an extractor for PDF and plain-text documents under root.
// An empty root accepts any path.
func NewLocal(root string, log *zap.Logger) *Local {
	return &Local{
		resolver: Resolver{Root: root},
		formats: map[string]opener{
			".pdf":  openPDF,
			".txt":  openText,
			".text": openText,
			".md":   openText,
		},
		logger: logger.OrNop(log),
	}
}

func (l *Local) Open(ctx context.Context, ref string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.resolver.Resolve(ref)
	if err != nil {
		return nil, err
	}

	ext := Extension(path)
	open, ok := l.formats[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedType, ext, l.Formats())
	}

	l.logger.Debug("opening document", zap.String("path", path), zap.String("format", ext))

	return open(ctx, path)
}

// Formats lists the supported file extensions.
func (l *Local) Formats() []string {
	formats := make([]string, 0, len(l.formats))
	for ext := range l.formats {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}
