package vectorstore

import (
	"context"

	"docqa/internal/domain"
)

// Storage persists chunk vectors for one index and supports similarity search.
// Search returns results ordered by descending score; equal scores keep chunk order.
// Remote backends only see the candidates their server returns, so a tie at the
// topK cut-off is resolved within that candidate window.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
}

// DefaultTopK is the number of results returned when a caller asks for topK <= 0.
const DefaultTopK = 4
