package domain

import (
	"context"
	"iter"
)

// Page is one paginated text block of an uploaded document.
type Page struct {
	Index int
	Text  string
}

// Document represents the single file loaded into a session.
type Document struct {
	Name  string
	Bytes []byte
	Pages []Page
}

// Chunk is a bounded window of the document text used for embedding and retrieval.
type Chunk struct {
	Index           int
	Text            string
	Size            int
	Offset          int
	SourcePage      int
	EndPage         int
	OverlapWithPrev int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one message in the session transcript.
type Turn struct {
	Seq    int
	Role   Role
	Text   string
	Failed bool
}

// Source attributes part of an answer to a page of the document.
type Source struct {
	Page    int
	Excerpt string
	Score   float64
}

// Answer is the result of a single question.
type Answer struct {
	Text      string
	Sources   []Source
	SmallTalk bool
	Failed    bool
	Err       error
}

// Loader turns raw document bytes into pages. Pages are produced lazily.
type Loader interface {
	Load(ctx context.Context, data []byte) (iter.Seq2[Page, error], error)
}

// Chunker splits document pages into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(pages []Page) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that can embed several texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Fitter is implemented by embedders that must learn a vocabulary from the corpus
// first. Fit returns a new embedder and leaves the receiver untouched.
type Fitter interface {
	Fit(corpus []string) (Embedder, error)
}

// Generator produces answer text from a composed prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
