package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"google.golang.org/api/iterator"
)

type chunkDoc struct {
	CourseTitle  string             `firestore:"course_title"`
	LessonNumber int                `firestore:"lesson_number"`
	ChunkIndex   int                `firestore:"chunk_index"`
	Content      string             `firestore:"content"`
	Embedding    firestore.Vector32 `firestore:"embedding,omitempty"`
	Distance     float64            `firestore:"vector_distance,omitempty"`
}

func toChunkDoc(rec *model.ChunkRecord) *chunkDoc {
	doc := &chunkDoc{
		CourseTitle:  rec.Chunk.CourseTitle,
		LessonNumber: rec.Chunk.LessonNumber,
		ChunkIndex:   rec.Chunk.Index,
		Content:      rec.Chunk.Content,
	}
	if len(rec.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(rec.Embedding)
	}
	return doc
}

type contentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newContentRepository(client *firestore.Client) *contentRepository {
	return &contentRepository{client: client}
}

func (r *contentRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + ContentCollection)
}

func (r *contentRepository) Put(ctx context.Context, records []*model.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, rec := range records {
		docRef := r.collection().Doc(rec.Chunk.ID())
		if _, err := bulkWriter.Set(docRef, toChunkDoc(rec)); err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("chunk", rec.Chunk.String()))
		}
	}
	bulkWriter.Flush()

	return nil
}

func (r *contentRepository) FindNearest(ctx context.Context, embedding []float32, filter model.SearchFilter, limit int) ([]*model.ContentHit, error) {
	q := r.collection().Query
	if filter.CourseTitle != "" {
		q = q.Where("course_title", "==", filter.CourseTitle)
	}
	if filter.LessonNumber != nil {
		q = q.Where("lesson_number", "==", *filter.LessonNumber)
	}

	vq := q.FindNearest("embedding", firestore.Vector32(embedding), limit,
		firestore.DistanceMeasureCosine, &firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	hits := make([]*model.ContentHit, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chunk vector search results",
				goerr.V(model.CourseTitleKey, filter.CourseTitle))
		}

		var d chunkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chunk from vector search")
		}
		hits = append(hits, &model.ContentHit{
			Chunk: &model.Chunk{
				CourseTitle:  d.CourseTitle,
				LessonNumber: d.LessonNumber,
				Index:        d.ChunkIndex,
				Content:      d.Content,
			},
			Score: cosineSimilarity(d.Distance),
		})
	}
	return hits, nil
}

func (r *contentRepository) DeleteByCourse(ctx context.Context, title string) error {
	q := r.collection().Where("course_title", "==", title)
	if err := deleteQuery(ctx, r.client, q); err != nil {
		return goerr.Wrap(err, "failed to delete chunks", goerr.V(model.CourseTitleKey, title))
	}
	return nil
}

func (r *contentRepository) DeleteAll(ctx context.Context) error {
	if err := deleteQuery(ctx, r.client, r.collection().Query); err != nil {
		return goerr.Wrap(err, "failed to delete chunks")
	}
	return nil
}
