package document

import (
	"context"
	"fmt"
	"iter"
	"os"

	"github.com/ledongthuc/pdf"
)

type pdfDocument struct {
	ctx      context.Context
	file     *os.File
	reader   *pdf.Reader
	consumed bool
}

func openPDF(ctx context.Context, path string) (_ Document, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			file.Close()
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	return &pdfDocument{ctx: ctx, file: file, reader: reader}, nil
}

func (d *pdfDocument) Pages() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if d.consumed {
			yield("", ErrPagesConsumed)
			return
		}
		d.consumed = true

		total := d.reader.NumPage()
		for num := 1; num <= total; num++ {
			if err := d.ctx.Err(); err != nil {
				yield("", err)
				return
			}

			text, err := d.pageText(num)
			if err != nil {
				yield("", err)
				return
			}

			if !yield(text, nil) {
				return
			}
		}
	}
}

func (d *pdfDocument) pageText(num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract text from page %d: %v", num, r)
		}
	}()

	page := d.reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract text from page %d: %w", num, err)
	}

	return text, nil
}

func (d *pdfDocument) Close() error {
	return d.file.Close()
}
