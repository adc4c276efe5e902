package loader

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/loader/text"
)

type namedLoader struct {
	name  string
	calls int
}

func (n *namedLoader) Load(_ context.Context, _ []byte) (iter.Seq2[domain.Page, error], error) {
	n.calls++
	return func(yield func(domain.Page, error) bool) {
		yield(domain.Page{Index: 0, Text: n.name}, nil)
	}, nil
}

func TestAuto_RoutesByContent(t *testing.T) {
	ctx := context.Background()
	pdf := &namedLoader{name: "pdf"}
	txt := &namedLoader{name: "text"}
	a := Auto{PDF: pdf, Text: txt}

	seq, err := a.Load(ctx, []byte("%PDF-1.7\n..."))
	require.NoError(t, err)
	pages, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, "pdf", pages[0].Text)

	seq, err = a.Load(ctx, []byte("plain words"))
	require.NoError(t, err)
	pages, err = Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, "text", pages[0].Text)

	_, err = a.Load(ctx, []byte{0xff, 0xfe, 0x00, 0x81})
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
	assert.Equal(t, 1, pdf.calls)
	assert.Equal(t, 1, txt.calls)
}

func TestAuto_MissingLoader(t *testing.T) {
	_, err := Auto{Text: text.New()}.Load(context.Background(), []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
}

func TestCollect_StopsAtError(t *testing.T) {
	boom := errors.New("bad page")
	seen := 0
	seq := func(yield func(domain.Page, error) bool) {
		for i := 0; i < 5; i++ {
			seen++
			if i == 2 {
				if !yield(domain.Page{}, boom) {
					return
				}
				continue
			}
			if !yield(domain.Page{Index: i}, nil) {
				return
			}
		}
	}
	pages, err := Collect(seq)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, pages)
	assert.Equal(t, 3, seen)
}
