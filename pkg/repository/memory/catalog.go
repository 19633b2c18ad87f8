package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

type catalogRepository struct {
	mu      sync.RWMutex
	entries map[string]*model.CatalogEntry
}

func newCatalogRepository() *catalogRepository {
	return &catalogRepository{
		entries: make(map[string]*model.CatalogEntry),
	}
}

func copyCourse(c *model.Course) *model.Course {
	copied := &model.Course{
		Title:      c.Title,
		Link:       c.Link,
		Instructor: c.Instructor,
		Lessons:    make([]*model.Lesson, len(c.Lessons)),
	}
	for i, l := range c.Lessons {
		lesson := *l
		copied.Lessons[i] = &lesson
	}
	return copied
}

func (r *catalogRepository) Put(ctx context.Context, entry *model.CatalogEntry) error {
	if entry == nil || entry.Course == nil || entry.Course.Title == "" {
		return goerr.Wrap(model.ErrInvalidArgument, "catalog entry requires course title")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.Course.Title] = &model.CatalogEntry{
		Course:    copyCourse(entry.Course),
		Embedding: append([]float32(nil), entry.Embedding...),
	}
	return nil
}

func (r *catalogRepository) Get(ctx context.Context, title string) (*model.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[title]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "course not found", goerr.V(model.CourseTitleKey, title))
	}
	return copyCourse(entry.Course), nil
}

func (r *catalogRepository) Exists(ctx context.Context, title string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[title]
	return ok, nil
}

func (r *catalogRepository) List(ctx context.Context) ([]*model.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Course, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, copyCourse(entry.Course))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Title < result[j].Title
	})
	return result, nil
}

func (r *catalogRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.CourseMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]*model.CourseMatch, 0, len(r.entries))
	for _, entry := range r.entries {
		if len(entry.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, &model.CourseMatch{
			Course: copyCourse(entry.Course),
			Score:  cosineSimilarity(embedding, entry.Embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Course.Title < candidates[j].Course.Title
	})

	if limit < len(candidates) {
		candidates = candidates[:max(limit, 0)]
	}
	return candidates, nil
}

func (r *catalogRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*model.CatalogEntry)
	return nil
}
