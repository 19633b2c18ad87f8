package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/repository/firestore"
	"github.com/secmon-lab/syllabus/pkg/repository/memory"
	"github.com/secmon-lab/syllabus/pkg/repository/milvus"
	"github.com/secmon-lab/syllabus/pkg/utils/testutil"
)

func embed(text string) []float32 {
	return testutil.BagOfWords32(text, model.EmbeddingDimension)
}

func uniqueTitle(name string) string {
	return fmt.Sprintf("%s %d", name, time.Now().UnixNano())
}

func newCourse(title string) *model.Course {
	return &model.Course{
		Title:      title,
		Link:       "https://example.com/" + title,
		Instructor: "Ada Lovelace",
		Lessons: []*model.Lesson{
			{Number: 1, Title: "Basics", Link: "https://example.com/l1"},
			{Number: 2, Title: "Advanced"},
		},
	}
}

func runCatalogRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put then Get returns the course", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		title := uniqueTitle("Intro to MCP")
		gt.NoError(t, repo.Catalog().Put(ctx, &model.CatalogEntry{Course: newCourse(title), Embedding: embed(title)})).Required()

		got, err := repo.Catalog().Get(ctx, title)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Title).Equal(title)
		gt.Value(t, got.Instructor).Equal("Ada Lovelace")
		gt.Array(t, got.Lessons).Length(2).Required()
		gt.Value(t, got.LessonLink(1)).Equal("https://example.com/l1")
		gt.Value(t, got.LessonLink(2)).Equal("")

		exists, err := repo.Catalog().Exists(ctx, title)
		gt.NoError(t, err).Required()
		gt.Bool(t, exists).True()
	})

	t.Run("Get unknown course returns ErrNotFound", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Catalog().Get(ctx, uniqueTitle("missing"))
		gt.Bool(t, errors.Is(err, model.ErrNotFound)).True()

		exists, err := repo.Catalog().Exists(ctx, uniqueTitle("missing"))
		gt.NoError(t, err).Required()
		gt.Bool(t, exists).False()
	})

	t.Run("Put is keyed by title", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		title := uniqueTitle("Idempotent Course")
		entry := &model.CatalogEntry{Course: newCourse(title), Embedding: embed(title)}
		gt.NoError(t, repo.Catalog().Put(ctx, entry)).Required()
		gt.NoError(t, repo.Catalog().Put(ctx, entry)).Required()

		courses, err := repo.Catalog().List(ctx)
		gt.NoError(t, err).Required()

		count := 0
		for _, c := range courses {
			if c.Title == title {
				count++
			}
		}
		gt.Value(t, count).Equal(1)
	})

	t.Run("FindNearest ranks the exact title first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		target := uniqueTitle("Retrieval Augmented Generation zebra")
		other := uniqueTitle("Prompt Engineering walrus")
		gt.NoError(t, repo.Catalog().Put(ctx, &model.CatalogEntry{Course: newCourse(target), Embedding: embed(target)})).Required()
		gt.NoError(t, repo.Catalog().Put(ctx, &model.CatalogEntry{Course: newCourse(other), Embedding: embed(other)})).Required()

		matches, err := repo.Catalog().FindNearest(ctx, embed(target), 2)
		gt.NoError(t, err).Required()
		gt.Number(t, len(matches)).GreaterOrEqual(1)
		gt.Value(t, matches[0].Course.Title).Equal(target)
		for i := 0; i+1 < len(matches); i++ {
			gt.Bool(t, matches[i].Score >= matches[i+1].Score).True()
		}
	})
}

func runContentRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	seed := func(t *testing.T, repo interfaces.Repository, title string) []*model.ChunkRecord {
		t.Helper()
		var records []*model.ChunkRecord
		texts := map[int][]string{
			1: {"servers expose tools", "clients call tools"},
			2: {"resources carry context", "prompts are templates"},
		}
		idx := 0
		for _, lesson := range []int{1, 2} {
			for _, text := range texts[lesson] {
				content := fmt.Sprintf("Course %s Lesson %d content: %s", title, lesson, text)
				records = append(records, &model.ChunkRecord{
					Chunk:     &model.Chunk{CourseTitle: title, LessonNumber: lesson, Index: idx, Content: content},
					Embedding: embed(text),
				})
				idx++
			}
		}
		gt.NoError(t, repo.Content().Put(context.Background(), records)).Required()
		return records
	}

	t.Run("FindNearest filters by course", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a := uniqueTitle("Course A")
		b := uniqueTitle("Course B")
		seed(t, repo, a)
		seed(t, repo, b)

		hits, err := repo.Content().FindNearest(ctx, embed("tools"), model.SearchFilter{CourseTitle: a}, 10)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(4).Required()
		for _, h := range hits {
			gt.Value(t, h.Chunk.CourseTitle).Equal(a)
		}
		for i := 0; i+1 < len(hits); i++ {
			gt.Bool(t, hits[i].Score >= hits[i+1].Score).True()
		}
	})

	t.Run("FindNearest filters by course and lesson", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a := uniqueTitle("Course Lesson Filter")
		seed(t, repo, a)

		lesson := 2
		hits, err := repo.Content().FindNearest(ctx, embed("prompts templates"), model.SearchFilter{CourseTitle: a, LessonNumber: &lesson}, 5)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(2).Required()
		gt.Value(t, hits[0].Chunk.LessonNumber).Equal(2)
		gt.String(t, hits[0].Chunk.Content).Contains("prompts are templates")
	})

	t.Run("FindNearest with unmatched filter is empty", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		hits, err := repo.Content().FindNearest(ctx, embed("tools"), model.SearchFilter{CourseTitle: uniqueTitle("nothing")}, 5)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(0)
	})

	t.Run("Put is idempotent and DeleteByCourse removes chunks", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a := uniqueTitle("Course Reingest")
		records := seed(t, repo, a)
		gt.NoError(t, repo.Content().Put(ctx, records)).Required()

		filter := model.SearchFilter{CourseTitle: a}
		hits, err := repo.Content().FindNearest(ctx, embed("tools"), filter, 20)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(4)

		gt.NoError(t, repo.Content().DeleteByCourse(ctx, a)).Required()
		hits, err = repo.Content().FindNearest(ctx, embed("tools"), filter, 20)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(0)
	})
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	// Standard collection names so the migrated vector indexes apply;
	// unique course titles isolate test data.
	repo, err := firestore.New(context.Background(), projectID, databaseID)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newMilvusRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	addr := os.Getenv("TEST_MILVUS_ADDR")
	if addr == "" {
		t.Skip("TEST_MILVUS_ADDR not set")
	}

	repo, err := milvus.New(context.Background(), addr, model.EmbeddingDimension, milvus.WithCollectionPrefix("test_"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func TestMemoryCatalogRepository(t *testing.T) {
	runCatalogRepositoryTest(t, newMemoryRepository)
}

func TestFirestoreCatalogRepository(t *testing.T) {
	runCatalogRepositoryTest(t, newFirestoreRepository)
}

func TestMilvusCatalogRepository(t *testing.T) {
	runCatalogRepositoryTest(t, newMilvusRepository)
}

func TestMemoryContentRepository(t *testing.T) {
	runContentRepositoryTest(t, newMemoryRepository)
}

func TestFirestoreContentRepository(t *testing.T) {
	runContentRepositoryTest(t, newFirestoreRepository)
}

func TestMilvusContentRepository(t *testing.T) {
	runContentRepositoryTest(t, newMilvusRepository)
}

func TestMemoryDeleteAll(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	title := "Intro to MCP"
	gt.NoError(t, repo.Catalog().Put(ctx, &model.CatalogEntry{Course: newCourse(title), Embedding: embed(title)})).Required()
	gt.NoError(t, repo.Content().Put(ctx, []*model.ChunkRecord{{
		Chunk:     &model.Chunk{CourseTitle: title, LessonNumber: 1, Content: "tools"},
		Embedding: embed("tools"),
	}})).Required()

	gt.NoError(t, repo.Catalog().DeleteAll(ctx)).Required()
	gt.NoError(t, repo.Content().DeleteAll(ctx)).Required()

	courses, err := repo.Catalog().List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, courses).Length(0)

	hits, err := repo.Content().FindNearest(ctx, embed("tools"), model.SearchFilter{}, 5)
	gt.NoError(t, err).Required()
	gt.Array(t, hits).Length(0)
}
