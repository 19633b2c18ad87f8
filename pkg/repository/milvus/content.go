package milvus

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

type contentRepository struct {
	client     client.Client
	collection string
	dimension  int
}

var contentOutputFields = []string{fieldCourseTitle, fieldLessonNumber, fieldChunkIndex, fieldContent}

func (r *contentRepository) Put(ctx context.Context, records []*model.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	titles := make([]string, len(records))
	lessons := make([]int64, len(records))
	indexes := make([]int64, len(records))
	contents := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, rec := range records {
		ids[i] = rec.Chunk.ID()
		titles[i] = rec.Chunk.CourseTitle
		lessons[i] = int64(rec.Chunk.LessonNumber)
		indexes[i] = int64(rec.Chunk.Index)
		contents[i] = rec.Chunk.Content
		vectors[i] = rec.Embedding
	}

	_, err := r.client.Upsert(ctx, r.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldCourseTitle, titles),
		entity.NewColumnInt64(fieldLessonNumber, lessons),
		entity.NewColumnInt64(fieldChunkIndex, indexes),
		entity.NewColumnVarChar(fieldContent, contents),
		entity.NewColumnFloatVector(fieldEmbedding, r.dimension, vectors),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert chunks into milvus", goerr.V("count", len(records)))
	}
	return nil
}

func (r *contentRepository) FindNearest(ctx context.Context, embedding []float32, filter model.SearchFilter, limit int) ([]*model.ContentHit, error) {
	sp, err := searchParam()
	if err != nil {
		return nil, err
	}

	expr := filterExpr(filter)
	results, err := r.client.Search(ctx, r.collection, []string{}, expr, contentOutputFields,
		[]entity.Vector{entity.FloatVector(embedding)}, fieldEmbedding, entity.COSINE, limit, sp, strong)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search milvus content", goerr.V("expr", expr))
	}

	hits := make([]*model.ContentHit, 0, limit)
	for _, res := range results {
		titles := varCharData(res.Fields, fieldCourseTitle)
		lessons := int64Data(res.Fields, fieldLessonNumber)
		indexes := int64Data(res.Fields, fieldChunkIndex)
		contents := varCharData(res.Fields, fieldContent)

		for i := 0; i < res.ResultCount; i++ {
			hits = append(hits, &model.ContentHit{
				Chunk: &model.Chunk{
					CourseTitle:  at(titles, i),
					LessonNumber: int(at(lessons, i)),
					Index:        int(at(indexes, i)),
					Content:      at(contents, i),
				},
				Score: float64(res.Scores[i]),
			})
		}
	}
	return hits, nil
}

func (r *contentRepository) DeleteByCourse(ctx context.Context, title string) error {
	expr := fieldCourseTitle + " == " + quote(title)
	if err := r.client.Delete(ctx, r.collection, "", expr); err != nil {
		return goerr.Wrap(err, "failed to delete milvus chunks", goerr.V(model.CourseTitleKey, title))
	}
	return nil
}

func (r *contentRepository) DeleteAll(ctx context.Context) error {
	if err := r.client.Delete(ctx, r.collection, "", fieldID+` != ""`); err != nil {
		return goerr.Wrap(err, "failed to delete milvus content")
	}
	return nil
}
