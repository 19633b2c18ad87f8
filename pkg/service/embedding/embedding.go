package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"golang.org/x/time/rate"
)

const defaultBatchSize = 64

// Service turns text into float32 vectors through an LLM provider.
type Service struct {
	llm       gollem.LLMClient
	dimension int
	batchSize int
	limiter   *rate.Limiter
}

type Option func(*Service)

func WithDimension(dim int) Option {
	return func(s *Service) {
		s.dimension = dim
	}
}

func WithBatchSize(size int) Option {
	return func(s *Service) {
		s.batchSize = size
	}
}

// WithRateLimit throttles provider calls to rps requests per second.
// Zero or negative disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func New(llm gollem.LLMClient, opts ...Option) (*Service, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required for embedding")
	}

	s := &Service{
		llm:       llm,
		dimension: model.EmbeddingDimension,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	return s, nil
}

func (s *Service) Dimension() int { return s.dimension }

// Embed returns one vector per input text, in input order.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		batch := texts[start:end]

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, goerr.Wrap(err, "embedding rate limiter aborted")
			}
		}

		vectors, err := s.llm.GenerateEmbedding(ctx, s.dimension, batch)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate embeddings",
				goerr.V("batch_start", start),
				goerr.V("batch_size", len(batch)),
			)
		}
		if len(vectors) != len(batch) {
			return nil, goerr.New("embedding count mismatch",
				goerr.V("expected", len(batch)),
				goerr.V("actual", len(vectors)),
			)
		}

		for _, v := range vectors {
			if len(v) == 0 {
				return nil, goerr.New("embedding generation returned empty vector")
			}
			result = append(result, toFloat32(v))
		}
	}

	return result, nil
}

// EmbedOne embeds a single text.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
