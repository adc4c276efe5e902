package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"docqa/internal/domain"
)

// Loader extracts the text of each PDF page with unipdf. unipdf only extracts
// text once a metered license key is registered.
type Loader struct{}

// New returns the unipdf loader when a license key is given, and the
// license-free PlainLoader otherwise.
func New(licenseKey string) (domain.Loader, error) {
	if licenseKey == "" {
		return NewPlain(), nil
	}
	if err := license.SetMeteredKey(licenseKey); err != nil {
		return nil, fmt.Errorf("unipdf license: %w", err)
	}
	return &Loader{}, nil
}

// Load parses the document eagerly enough to report structural errors, then
// extracts page text lazily as the sequence is consumed.
func (l *Loader) Load(ctx context.Context, data []byte) (iter.Seq2[domain.Page, error], error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil {
			return nil, fmt.Errorf("decrypt pdf: %w", err)
		}
		if !ok {
			return nil, errors.New("pdf is password protected")
		}
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("count pdf pages: %w", err)
	}

	return func(yield func(domain.Page, error) bool) {
		for i := 1; i <= numPages; i++ {
			if err := ctx.Err(); err != nil {
				yield(domain.Page{}, err)
				return
			}
			text, err := pageText(reader, i)
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

func pageText(reader *model.PdfReader, number int) (string, error) {
	page, err := reader.GetPage(number)
	if err != nil {
		return "", fmt.Errorf("read pdf page %d: %w", number, err)
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", fmt.Errorf("extract pdf page %d: %w", number, err)
	}
	text, err := ex.ExtractText()
	if err != nil {
		return "", fmt.Errorf("extract pdf page %d: %w", number, err)
	}
	return text, nil
}
