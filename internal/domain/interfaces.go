package domain

import "context"

// Embedder converts text into fixed-dimension vectors.
// Callers must not embed before IsAvailable reports true; implementations
// return errors.ErrModelUnavailable in that case.
type Embedder interface {
	Name() string
	Dimension() int
	IsAvailable(ctx context.Context) bool
	EmbedSingle(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Preparer is implemented by embedders that must see the corpus before use.
type Preparer interface {
	Prepare(corpus []string) error
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore is the hybrid index contract. The in-memory engine is the
// reference implementation; remote or persistent backends satisfy the same
// contract.
type VectorStore interface {
	Upsert(ctx context.Context, record VectorRecord) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
	Clear(ctx context.Context) (int, error)
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
