package interfaces

import (
	"context"

	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

// CatalogRepository stores one entry per course, keyed by title.
type CatalogRepository interface {
	// Put creates or replaces the entry for entry.Course.Title
	Put(ctx context.Context, entry *model.CatalogEntry) error

	// Get retrieves a course by exact title. Returns model.ErrNotFound if absent.
	Get(ctx context.Context, title string) (*model.Course, error)

	// Exists reports whether a course with the exact title is stored
	Exists(ctx context.Context, title string) (bool, error)

	// List returns all courses ordered by title
	List(ctx context.Context) ([]*model.Course, error)

	// FindNearest returns up to limit courses ordered by descending similarity
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.CourseMatch, error)

	// DeleteAll removes every catalog entry
	DeleteAll(ctx context.Context) error
}
