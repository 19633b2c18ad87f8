package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/repository/memory"
	"github.com/secmon-lab/syllabus/pkg/service/chunker"
	"github.com/secmon-lab/syllabus/pkg/service/embedding"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/usecase"
	"github.com/secmon-lab/syllabus/pkg/utils/testutil"
)

func newIngest(t *testing.T, opts ...chunker.Option) (*usecase.IngestUseCase, *memory.Memory) {
	t.Helper()
	emb, err := embedding.New(&testutil.EmbeddingClient{}, embedding.WithDimension(testDim))
	gt.NoError(t, err).Required()
	repo := memory.New()
	return usecase.NewIngestUseCase(repo, chunker.New(opts...), emb), repo
}

func chunkCount(t *testing.T, repo *memory.Memory, title string) int {
	t.Helper()
	hits, err := repo.Content().FindNearest(context.Background(), testutil.BagOfWords32("course", testDim),
		model.SearchFilter{CourseTitle: title}, 1000)
	gt.NoError(t, err).Required()
	return len(hits)
}

func TestIngestSource(t *testing.T) {
	ctx := context.Background()
	dir := writeDocs(t, map[string]string{
		"course1_script.txt": mcpDoc,
		"course2_script.txt": retrievalDoc,
		"broken.txt":         "Lesson 1: no header\nbody",
		"slides.pdf":         "%PDF-1.4",
		"handout.docx":       "PK",
	})
	src, err := loader.Open(ctx, dir)
	gt.NoError(t, err).Required()

	ingest, repo := newIngest(t)

	report, err := ingest.IngestSource(ctx, src, false)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Courses).Equal([]string{"Intro to MCP", "Advanced Retrieval for AI"})
	gt.Value(t, report.Skipped).Equal([]string{"handout.docx"})
	gt.Array(t, report.Failed).Length(2).Required()
	gt.Value(t, report.Failed[0].Name).Equal("broken.txt")
	gt.Error(t, report.Failed[0].Err).Is(model.ErrDocumentFormat)
	gt.Value(t, report.Failed[1].Name).Equal("slides.pdf")
	gt.Error(t, report.Failed[1].Err).Is(model.ErrDocumentFormat)
	gt.Value(t, report.Chunks).Equal(4)

	courses, err := repo.Catalog().List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, courses).Length(2)
	gt.Value(t, chunkCount(t, repo, "Intro to MCP")).Equal(2)

	t.Run("existing titles are skipped", func(t *testing.T) {
		report, err := ingest.IngestSource(ctx, src, false)
		gt.NoError(t, err).Required()
		gt.Array(t, report.Courses).Length(0)
		gt.Array(t, report.Existing).Length(2)
		gt.Value(t, report.Chunks).Equal(0)
	})

	t.Run("clear re-ingests everything", func(t *testing.T) {
		report, err := ingest.IngestSource(ctx, src, true)
		gt.NoError(t, err).Required()
		gt.Array(t, report.Courses).Length(2)
		gt.Array(t, report.Existing).Length(0)
		gt.Value(t, chunkCount(t, repo, "Intro to MCP")).Equal(2)
	})
}

func TestIngestFileReplacesCourse(t *testing.T) {
	ctx := context.Background()
	dir := writeDocs(t, map[string]string{"course1_script.txt": mcpDoc})
	src, err := loader.Open(ctx, dir)
	gt.NoError(t, err).Required()

	ingest, repo := newIngest(t)
	_, err = ingest.IngestSource(ctx, src, false)
	gt.NoError(t, err).Required()
	gt.Value(t, chunkCount(t, repo, "Intro to MCP")).Equal(2)

	shorter := "Course Title: Intro to MCP\n\nLesson 0: Only lesson\nJust one lesson now.\n"
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "course1_script.txt"), []byte(shorter), 0o600)).Required()

	course, err := ingest.IngestFile(ctx, src, "course1_script.txt")
	gt.NoError(t, err).Required()
	gt.Array(t, course.Lessons).Length(1)
	gt.Value(t, chunkCount(t, repo, "Intro to MCP")).Equal(1)

	stored, err := repo.Catalog().Get(ctx, "Intro to MCP")
	gt.NoError(t, err).Required()
	gt.Value(t, stored.Lessons[0].Title).Equal("Only lesson")

	_, err = ingest.IngestFile(ctx, src, "handout.docx")
	gt.Value(t, err).NotNil()
}

func TestIngestCourseChunking(t *testing.T) {
	ctx := context.Background()
	ingest, repo := newIngest(t, chunker.WithChunkSize(20), chunker.WithOverlap(5))

	course := &model.Course{
		Title: "Tiny",
		Lessons: []*model.Lesson{
			{Number: 1, Title: "One", Body: "abcdefghijklmnopqrstuvwxyz0123456789"},
		},
	}
	n, err := ingest.IngestCourse(ctx, course)
	gt.NoError(t, err).Required()
	// windows of 20 runes stepping by 15 over 36 runes
	gt.Value(t, n).Equal(3)
	gt.Value(t, chunkCount(t, repo, "Tiny")).Equal(3)

	gt.NoError(t, ingest.Clear(ctx)).Required()
	gt.Value(t, chunkCount(t, repo, "Tiny")).Equal(0)
	exists, err := repo.Catalog().Exists(ctx, "Tiny")
	gt.NoError(t, err).Required()
	gt.Bool(t, exists).False()
}
