package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/service/chunker"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/service/retrieval"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/secmon-lab/syllabus/pkg/utils/metrics"
	"github.com/secmon-lab/syllabus/pkg/utils/safe"
	"golang.org/x/sync/errgroup"
)

const parseConcurrency = 4

// IngestFailure is a document that could not be parsed.
type IngestFailure struct {
	Name string
	Err  error
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	// Courses are titles newly written to the index
	Courses []string
	// Existing are titles already present in the catalog
	Existing []string
	// Skipped are files in formats the parser does not read
	Skipped []string
	Failed  []*IngestFailure
	Chunks  int
}

// IngestUseCase parses course documents, embeds their chunks and writes both indexes.
type IngestUseCase struct {
	repo     interfaces.Repository
	chunker  *chunker.Chunker
	embedder retrieval.Embedder
}

func NewIngestUseCase(repo interfaces.Repository, c *chunker.Chunker, embedder retrieval.Embedder) *IngestUseCase {
	if c == nil {
		c = chunker.New()
	}
	return &IngestUseCase{repo: repo, chunker: c, embedder: embedder}
}

// IngestSource ingests every document of src. Courses whose title is already
// cataloged are left untouched unless clear is set, in which case both
// indexes are emptied first.
func (uc *IngestUseCase) IngestSource(ctx context.Context, src loader.Source, clear bool) (*IngestReport, error) {
	logger := logging.From(ctx)

	if clear {
		if err := uc.Clear(ctx); err != nil {
			return nil, err
		}
	}

	names, err := src.List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list documents", goerr.V("source", src.String()))
	}

	report := &IngestReport{}
	var parsable []string
	for _, name := range names {
		if loader.IsParsable(name) {
			parsable = append(parsable, name)
		} else {
			report.Skipped = append(report.Skipped, name)
		}
	}

	courses := make([]*model.Course, len(parsable))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parseConcurrency)
	for i, name := range parsable {
		eg.Go(func() error {
			course, err := uc.parse(egCtx, src, name)
			if err != nil {
				if errors.Is(err, model.ErrDocumentFormat) {
					mu.Lock()
					report.Failed = append(report.Failed, &IngestFailure{Name: name, Err: err})
					mu.Unlock()
					return nil
				}
				return err
			}
			courses[i] = course
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Name < report.Failed[j].Name })

	for _, course := range courses {
		if course == nil {
			continue
		}

		exists, err := uc.repo.Catalog().Exists(ctx, course.Title)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to check course existence", goerr.V(model.CourseTitleKey, course.Title))
		}
		if exists {
			report.Existing = append(report.Existing, course.Title)
			continue
		}

		n, err := uc.IngestCourse(ctx, course)
		if err != nil {
			return nil, err
		}
		report.Courses = append(report.Courses, course.Title)
		report.Chunks += n
	}

	for _, f := range report.Failed {
		logger.Warn("skipped malformed document", "name", f.Name, "error", f.Err)
	}
	logger.Info("ingested documents",
		"source", src.String(),
		"courses", len(report.Courses),
		"existing", len(report.Existing),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"chunks", report.Chunks,
	)
	return report, nil
}

// IngestFile parses one document and replaces the course it describes.
func (uc *IngestUseCase) IngestFile(ctx context.Context, src loader.Source, name string) (*model.Course, error) {
	if !loader.IsParsable(name) {
		return nil, goerr.New("document format is not supported", goerr.V(model.DocumentKey, name))
	}

	course, err := uc.parse(ctx, src, name)
	if err != nil {
		return nil, err
	}
	if _, err := uc.IngestCourse(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (uc *IngestUseCase) parse(ctx context.Context, src loader.Source, name string) (*model.Course, error) {
	r, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer safe.Close(ctx, r)

	text, err := loader.Text(name, r)
	if err != nil {
		return nil, err
	}
	return chunker.Parse(name, text)
}

// IngestCourse writes course to both indexes, replacing any chunks stored
// under the same title. It returns the number of chunks written.
func (uc *IngestUseCase) IngestCourse(ctx context.Context, course *model.Course) (int, error) {
	chunks := uc.chunker.Split(course)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to embed chunks", goerr.V(model.CourseTitleKey, course.Title))
	}

	titleVec, err := uc.embedder.EmbedOne(ctx, course.Title)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to embed course title", goerr.V(model.CourseTitleKey, course.Title))
	}

	records := make([]*model.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = &model.ChunkRecord{Chunk: c, Embedding: vectors[i]}
	}

	if err := uc.repo.Content().DeleteByCourse(ctx, course.Title); err != nil {
		return 0, goerr.Wrap(err, "failed to delete old chunks", goerr.V(model.CourseTitleKey, course.Title))
	}
	if err := uc.repo.Content().Put(ctx, records); err != nil {
		return 0, goerr.Wrap(err, "failed to store chunks", goerr.V(model.CourseTitleKey, course.Title))
	}
	if err := uc.repo.Catalog().Put(ctx, &model.CatalogEntry{Course: course, Embedding: titleVec}); err != nil {
		return 0, goerr.Wrap(err, "failed to store catalog entry", goerr.V(model.CourseTitleKey, course.Title))
	}

	metrics.AddIngestedChunks(len(records))
	logging.From(ctx).Debug("ingested course",
		model.CourseTitleKey, course.Title,
		"lessons", len(course.Lessons),
		"chunks", len(records),
	)
	return len(records), nil
}

// Clear removes all courses and chunks.
func (uc *IngestUseCase) Clear(ctx context.Context) error {
	if err := uc.repo.Content().DeleteAll(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear content index")
	}
	if err := uc.repo.Catalog().DeleteAll(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear course catalog")
	}
	return nil
}
