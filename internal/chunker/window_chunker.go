package chunker

import (
	"fmt"
	"sort"
	"strings"

	"docqa/internal/domain"
)

const (
	// DefaultChunkSize is the default number of runes per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of runes shared by consecutive chunks.
	DefaultChunkOverlap = 200
)

// pages are joined with a blank line so text on either side of a page break does not fuse.
const pageSeparator = "\n\n"

// WindowChunker splits the page stream into fixed-size rune windows with overlap.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(pages []domain.Page) ([]domain.Chunk, error) {
	return Split(pages, c.chunkSize, c.overlap)
}

// Validate checks chunkSize > 0 and 0 <= overlap < chunkSize.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", domain.ErrInvalidConfig, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)", domain.ErrInvalidConfig, overlap, chunkSize)
	}
	return nil
}

// Split treats pages as one logical text stream and cuts it into windows of
// chunkSize runes, each starting chunkSize-overlap runes after the previous one.
// Page boundaries are not split points; each chunk records the pages it spans.
func Split(pages []domain.Page, chunkSize, overlap int) ([]domain.Chunk, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	stream, spans := concatenate(pages)
	if len(stream) == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	chunks := make([]domain.Chunk, 0, len(stream)/step+1)
	prevEnd := 0
	for start := 0; ; start += step {
		end := start + chunkSize
		if end > len(stream) {
			end = len(stream)
		}
		shared := 0
		if len(chunks) > 0 {
			shared = prevEnd - start
		}
		chunks = append(chunks, domain.Chunk{
			Index:           len(chunks),
			Text:            string(stream[start:end]),
			Size:            end - start,
			Offset:          start,
			SourcePage:      pageAt(spans, start),
			EndPage:         pageAt(spans, end-1),
			OverlapWithPrev: shared,
		})
		if end == len(stream) {
			break
		}
		prevEnd = end
	}
	return chunks, nil
}

// span maps a rune range of the stream back to a page. The separator after a
// page belongs to that page.
type span struct {
	page int
	end  int
}

func concatenate(pages []domain.Page) ([]rune, []span) {
	var b strings.Builder
	var spans []span
	n := 0
	for _, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		if len(spans) > 0 {
			b.WriteString(pageSeparator)
			n += len([]rune(pageSeparator))
			spans[len(spans)-1].end = n
		}
		b.WriteString(text)
		n += len([]rune(text))
		spans = append(spans, span{page: p.Index, end: n})
	}
	return []rune(b.String()), spans
}

func pageAt(spans []span, offset int) int {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > offset })
	if i == len(spans) {
		i = len(spans) - 1
	}
	return spans[i].page
}
