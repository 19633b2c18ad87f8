package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/repository/memory"
	"github.com/secmon-lab/syllabus/pkg/service/embedding"
	"github.com/secmon-lab/syllabus/pkg/service/retrieval"
	"github.com/secmon-lab/syllabus/pkg/utils/testutil"
)

const dim = 64

func setup(t *testing.T, titles ...string) (*retrieval.Service, *memory.Memory) {
	t.Helper()
	ctx := context.Background()

	emb, err := embedding.New(&testutil.EmbeddingClient{}, embedding.WithDimension(dim))
	gt.NoError(t, err).Required()

	repo := memory.New()
	for _, title := range titles {
		gt.NoError(t, repo.Catalog().Put(ctx, &model.CatalogEntry{
			Course: &model.Course{
				Title:   title,
				Lessons: []*model.Lesson{{Number: 1, Title: "Start", Link: "https://example.com/" + title}},
			},
			Embedding: testutil.BagOfWords32(title, dim),
		})).Required()
	}

	return retrieval.New(repo, emb, retrieval.WithTopK(3)), repo
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("partial name resolves to nearest title", func(t *testing.T) {
		svc, _ := setup(t, "Intro to MCP", "Advanced Retrieval for AI")
		title, err := svc.Resolve(ctx, "MCP")
		gt.NoError(t, err).Required()
		gt.Value(t, title).Equal("Intro to MCP")
	})

	t.Run("exact title resolves to itself", func(t *testing.T) {
		svc, _ := setup(t, "Intro to MCP", "Advanced Retrieval for AI")
		for _, title := range []string{"Intro to MCP", "Advanced Retrieval for AI"} {
			got, err := svc.Resolve(ctx, title)
			gt.NoError(t, err).Required()
			gt.Value(t, got).Equal(title)
		}
	})

	t.Run("empty catalog is not found", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.Resolve(ctx, "MCP")
		gt.Bool(t, errors.Is(err, model.ErrCourseNotFound)).True()
	})

	t.Run("name sharing nothing with the catalog is not found", func(t *testing.T) {
		svc, _ := setup(t, "Intro to MCP")
		_, err := svc.Resolve(ctx, "XYZ999")
		gt.Bool(t, errors.Is(err, model.ErrCourseNotFound)).True()
	})

	t.Run("empty name is invalid", func(t *testing.T) {
		svc, _ := setup(t, "Intro to MCP")
		_, err := svc.Resolve(ctx, "  ")
		gt.Bool(t, errors.Is(err, model.ErrInvalidArgument)).True()
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t, "Intro to MCP")

	var records []*model.ChunkRecord
	for i, text := range []string{"tools and servers", "tools only", "nothing relevant", "servers"} {
		records = append(records, &model.ChunkRecord{
			Chunk:     &model.Chunk{CourseTitle: "Intro to MCP", LessonNumber: i % 2, Index: i, Content: text},
			Embedding: testutil.BagOfWords32(text, dim),
		})
	}
	gt.NoError(t, repo.Content().Put(ctx, records)).Required()

	t.Run("default top k and descending scores", func(t *testing.T) {
		hits, err := svc.Search(ctx, "tools", model.SearchFilter{}, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(3).Required()
		gt.Value(t, hits[0].Chunk.Content).Equal("tools only")
		for i := 0; i+1 < len(hits); i++ {
			gt.Bool(t, hits[i].Score >= hits[i+1].Score).True()
		}
	})

	t.Run("lesson filter", func(t *testing.T) {
		lesson := 1
		hits, err := svc.Search(ctx, "tools", model.SearchFilter{LessonNumber: &lesson}, 10)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(2)
		for _, h := range hits {
			gt.Value(t, h.Chunk.LessonNumber).Equal(1)
		}
	})
}

func TestCourseAndStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, "Intro to MCP", "Advanced Retrieval for AI")

	course, err := svc.Course(ctx, "Intro to MCP")
	gt.NoError(t, err).Required()
	gt.Value(t, course.LessonLink(1)).Equal("https://example.com/Intro to MCP")

	_, err = svc.Course(ctx, "Unknown")
	gt.Bool(t, errors.Is(err, model.ErrCourseNotFound)).True()

	stats, err := svc.Stats(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, stats.TotalCourses).Equal(2)
	gt.Value(t, stats.CourseTitles).Equal([]string{"Advanced Retrieval for AI", "Intro to MCP"})
}
