package text

import (
	"context"
	"iter"
	"strings"

	"docqa/internal/domain"
)

// PageBreak separates pages in plain-text documents, as emitted by pdftotext.
const PageBreak = "\f"

// Loader reads UTF-8 text, one page per form-feed separated block.
type Loader struct{}

func New() *Loader { return &Loader{} }

func (l *Loader) Load(ctx context.Context, data []byte) (iter.Seq2[domain.Page, error], error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	return func(yield func(domain.Page, error) bool) {
		for i, block := range strings.Split(content, PageBreak) {
			if err := ctx.Err(); err != nil {
				yield(domain.Page{}, err)
				return
			}
			if !yield(domain.Page{Index: i, Text: block}, nil) {
				return
			}
		}
	}, nil
}
