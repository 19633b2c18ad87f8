package interfaces

import (
	"context"

	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

// ContentRepository stores one record per chunk.
type ContentRepository interface {
	// Put creates or replaces records keyed by Chunk.ID()
	Put(ctx context.Context, records []*model.ChunkRecord) error

	// FindNearest returns up to limit chunks satisfying filter, ordered by descending similarity.
	// Filtering is applied inside the search, so limit counts matching chunks only.
	FindNearest(ctx context.Context, embedding []float32, filter model.SearchFilter, limit int) ([]*model.ContentHit, error)

	// DeleteByCourse removes all chunks of a course
	DeleteByCourse(ctx context.Context, title string) error

	// DeleteAll removes every chunk
	DeleteAll(ctx context.Context) error
}
