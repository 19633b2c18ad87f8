// Package testutil provides deterministic collaborators for tests.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// EmbeddingClient is a gollem.LLMClient whose embeddings are hashed bags of
// words: texts sharing words get a positive cosine similarity, texts sharing
// none get zero. NewSession delegates to SessionFn.
type EmbeddingClient struct {
	SessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	Err       error

	mu    sync.Mutex
	calls int
}

var _ gollem.LLMClient = &EmbeddingClient{}

func (c *EmbeddingClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.SessionFn == nil {
		return nil, goerr.New("session is not scripted")
	}
	return c.SessionFn(ctx, options...)
}

func (c *EmbeddingClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}

	out := make([][]float64, len(input))
	for i, text := range input {
		out[i] = BagOfWords(text, dimension)
	}
	return out, nil
}

// Calls returns how many times GenerateEmbedding was invoked.
func (c *EmbeddingClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// BagOfWords hashes lower-cased words of text into a vector of dimension dim.
func BagOfWords(text string, dim int) []float64 {
	vec := make([]float64, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	return vec
}

// BagOfWords32 is BagOfWords converted to float32.
func BagOfWords32(text string, dim int) []float32 {
	v := BagOfWords(text, dim)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
