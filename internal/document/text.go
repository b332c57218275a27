package document

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"iter"
	"os"
)

// maxPageSize bounds a single plain-text page.
const maxPageSize = 16 << 20

type textDocument struct {
	ctx      context.Context
	file     *os.File
	consumed bool
}

// openText opens a plain-text document. Form feeds separate pages.
func openText(ctx context.Context, path string) (Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open text document: %w", err)
	}

	return &textDocument{ctx: ctx, file: file}, nil
}

func (d *textDocument) Pages() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if d.consumed {
			yield("", ErrPagesConsumed)
			return
		}
		d.consumed = true

		scanner := bufio.NewScanner(d.file)
		scanner.Buffer(make([]byte, 0, 64*1024), maxPageSize)
		scanner.Split(splitPages)

		for scanner.Scan() {
			if err := d.ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(scanner.Text(), nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("read text document: %w", err))
		}
	}
}

func (d *textDocument) Close() error {
	return d.file.Close()
}

func splitPages(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\f'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
