package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates chunking or retrieval parameters violate their invariants.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrIngestion indicates an upload could not be turned into a queryable session.
	ErrIngestion = errors.New("ingestion failed")

	// ErrEmbeddingProvider indicates the embedding provider failed or returned unusable vectors.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrGenerationProvider indicates the generation provider failed.
	ErrGenerationProvider = errors.New("generation provider error")

	// ErrUnsupportedDocument indicates no loader understands the uploaded bytes.
	ErrUnsupportedDocument = errors.New("unsupported document")

	// ErrNoSession indicates a question arrived before any document was uploaded.
	ErrNoSession = errors.New("no document uploaded")

	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("empty question")
)

// IngestionError reports the upload stage that failed.
type IngestionError struct {
	Stage string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrIngestion, e.Stage, e.Err)
}

// Unwrap exposes both ErrIngestion and the underlying cause to errors.Is.
func (e *IngestionError) Unwrap() []error {
	return []error{ErrIngestion, e.Err}
}
