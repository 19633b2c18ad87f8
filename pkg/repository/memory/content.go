package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

type contentRepository struct {
	mu      sync.RWMutex
	records map[string]*model.ChunkRecord
}

func newContentRepository() *contentRepository {
	return &contentRepository{
		records: make(map[string]*model.ChunkRecord),
	}
}

func copyRecord(rec *model.ChunkRecord) *model.ChunkRecord {
	chunk := *rec.Chunk
	return &model.ChunkRecord{
		Chunk:     &chunk,
		Embedding: append([]float32(nil), rec.Embedding...),
	}
}

func (r *contentRepository) Put(ctx context.Context, records []*model.ChunkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		r.records[rec.Chunk.ID()] = copyRecord(rec)
	}
	return nil
}

func (r *contentRepository) FindNearest(ctx context.Context, embedding []float32, filter model.SearchFilter, limit int) ([]*model.ContentHit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hits := make([]*model.ContentHit, 0)
	for _, rec := range r.records {
		if !filter.Match(rec.Chunk) || len(rec.Embedding) == 0 {
			continue
		}
		chunk := *rec.Chunk
		hits = append(hits, &model.ContentHit{
			Chunk: &chunk,
			Score: cosineSimilarity(embedding, rec.Embedding),
		})
	}

	// ties are broken by chunk position so results are reproducible
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Chunk.CourseTitle != hits[j].Chunk.CourseTitle {
			return hits[i].Chunk.CourseTitle < hits[j].Chunk.CourseTitle
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})

	if limit < len(hits) {
		hits = hits[:max(limit, 0)]
	}
	return hits, nil
}

func (r *contentRepository) DeleteByCourse(ctx context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.records {
		if rec.Chunk.CourseTitle == title {
			delete(r.records, id)
		}
	}
	return nil
}

func (r *contentRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]*model.ChunkRecord)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
