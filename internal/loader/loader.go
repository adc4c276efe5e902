// Package loader turns uploaded bytes into document pages.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"unicode/utf8"

	"docqa/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Auto picks the PDF loader for PDF bytes and the text loader for UTF-8 text.
type Auto struct {
	PDF  domain.Loader
	Text domain.Loader
}

func (a Auto) Load(ctx context.Context, data []byte) (iter.Seq2[domain.Page, error], error) {
	switch {
	case bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic):
		if a.PDF == nil {
			return nil, fmt.Errorf("%w: pdf support is not configured", domain.ErrUnsupportedDocument)
		}
		return a.PDF.Load(ctx, data)
	case utf8.Valid(data):
		if a.Text == nil {
			return nil, fmt.Errorf("%w: text support is not configured", domain.ErrUnsupportedDocument)
		}
		return a.Text.Load(ctx, data)
	default:
		return nil, fmt.Errorf("%w: neither PDF nor UTF-8 text", domain.ErrUnsupportedDocument)
	}
}

// Collect drains a page sequence, stopping at the first error.
func Collect(pages iter.Seq2[domain.Page, error]) ([]domain.Page, error) {
	var out []domain.Page
	for p, err := range pages {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
