package retrieval

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

const DefaultTopK = 5

// Embedder converts text to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Service resolves course names against the catalog and searches chunk content.
type Service struct {
	repo     interfaces.Repository
	embedder Embedder
	topK     int
	minScore float64
}

type Option func(*Service)

// WithTopK sets the default number of hits returned by Search.
func WithTopK(k int) Option {
	return func(s *Service) {
		s.topK = k
	}
}

// WithMinScore sets the similarity a catalog match must exceed to resolve.
// The default 0 only rejects matches that share no signal with the query.
func WithMinScore(score float64) Option {
	return func(s *Service) {
		s.minScore = score
	}
}

func New(repo interfaces.Repository, embedder Embedder, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		embedder: embedder,
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	return s
}

func (s *Service) TopK() int { return s.topK }

// Resolve maps a partial or fuzzy course name to the exact title of the
// nearest catalog entry. It returns model.ErrCourseNotFound when the catalog
// is empty or the best match does not exceed the minimum score.
func (s *Service) Resolve(ctx context.Context, partial string) (string, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return "", goerr.Wrap(model.ErrInvalidArgument, "course name is empty")
	}

	exists, err := s.repo.Catalog().Exists(ctx, partial)
	if err != nil {
		return "", goerr.Wrap(err, "failed to look up course title", goerr.V(model.CourseTitleKey, partial))
	}
	if exists {
		return partial, nil
	}

	vec, err := s.embedder.EmbedOne(ctx, partial)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed course name", goerr.V(model.CourseTitleKey, partial))
	}

	matches, err := s.repo.Catalog().FindNearest(ctx, vec, 1)
	if err != nil {
		return "", goerr.Wrap(err, "failed to search course catalog", goerr.V(model.CourseTitleKey, partial))
	}
	if len(matches) == 0 || matches[0].Score <= s.minScore {
		return "", goerr.Wrap(model.ErrCourseNotFound, "no course matches name", goerr.V(model.CourseTitleKey, partial))
	}

	logging.From(ctx).Debug("resolved course name",
		"query", partial,
		"course", matches[0].Course.Title,
		"score", matches[0].Score,
	)
	return matches[0].Course.Title, nil
}

// Search returns up to topK chunks matching filter in descending similarity.
// topK <= 0 uses the configured default.
func (s *Service) Search(ctx context.Context, query string, filter model.SearchFilter, topK int) ([]*model.ContentHit, error) {
	if topK <= 0 {
		topK = s.topK
	}

	vec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}

	hits, err := s.repo.Content().FindNearest(ctx, vec, filter, topK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search course content",
			goerr.V(model.CourseTitleKey, filter.CourseTitle))
	}
	return hits, nil
}

// Course returns the catalog entry for an exact title.
func (s *Service) Course(ctx context.Context, title string) (*model.Course, error) {
	course, err := s.repo.Catalog().Get(ctx, title)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, goerr.Wrap(model.ErrCourseNotFound, "course not in catalog", goerr.V(model.CourseTitleKey, title))
		}
		return nil, goerr.Wrap(err, "failed to get course", goerr.V(model.CourseTitleKey, title))
	}
	return course, nil
}

// Stats lists the titles of all ingested courses.
func (s *Service) Stats(ctx context.Context) (*model.CatalogStats, error) {
	courses, err := s.repo.Catalog().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list courses")
	}

	stats := &model.CatalogStats{
		TotalCourses: len(courses),
		CourseTitles: make([]string, len(courses)),
	}
	for i, c := range courses {
		stats.CourseTitles[i] = c.Title
	}
	return stats, nil
}
