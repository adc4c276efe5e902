package pdf

import (
	"bytes"
	"context"
	"fmt"
	"iter"

	lpdf "github.com/ledongthuc/pdf"

	"docqa/internal/domain"
)

// PlainLoader extracts page text with ledongthuc/pdf, which needs no license.
// Layout fidelity is lower than unipdf's.
type PlainLoader struct{}

func NewPlain() *PlainLoader { return &PlainLoader{} }

func (l *PlainLoader) Load(ctx context.Context, data []byte) (iter.Seq2[domain.Page, error], error) {
	reader, err := openPlain(data)
	if err != nil {
		return nil, err
	}
	numPages := reader.NumPage()

	return func(yield func(domain.Page, error) bool) {
		for i := 1; i <= numPages; i++ {
			if err := ctx.Err(); err != nil {
				yield(domain.Page{}, err)
				return
			}
			text, err := plainPageText(reader, i)
			if err != nil {
				yield(domain.Page{}, err)
				return
			}
			if !yield(domain.Page{Index: i - 1, Text: text}, nil) {
				return
			}
		}
	}, nil
}

// openPlain and plainPageText turn reader panics on malformed input into errors.
func openPlain(data []byte) (r *lpdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	r, err = lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return r, nil
}

func plainPageText(reader *lpdf.Reader, number int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("extract pdf page %d: %v", number, rec)
		}
	}()
	page := reader.Page(number)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract pdf page %d: %w", number, err)
	}
	return text, nil
}
