package embedding_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/service/embedding"
	"github.com/secmon-lab/syllabus/pkg/utils/testutil"
)

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("batches input and preserves order", func(t *testing.T) {
		llm := &testutil.EmbeddingClient{}
		svc, err := embedding.New(llm,
			embedding.WithDimension(32),
			embedding.WithBatchSize(2),
			embedding.WithRateLimit(1000, 10),
		)
		gt.NoError(t, err).Required()

		texts := make([]string, 5)
		for i := range texts {
			texts[i] = fmt.Sprintf("lesson %d", i)
		}

		vectors, err := svc.Embed(ctx, texts)
		gt.NoError(t, err).Required()
		gt.Array(t, vectors).Length(5).Required()
		gt.Value(t, llm.Calls()).Equal(3)

		for i, v := range vectors {
			gt.Array(t, v).Length(32)
			gt.Value(t, v).Equal(testutil.BagOfWords32(texts[i], 32))
		}
	})

	t.Run("wraps provider error", func(t *testing.T) {
		providerErr := errors.New("quota exceeded")
		svc, err := embedding.New(&testutil.EmbeddingClient{Err: providerErr})
		gt.NoError(t, err).Required()

		_, err = svc.EmbedOne(ctx, "hello")
		gt.Bool(t, errors.Is(err, providerErr)).True()
	})

	t.Run("requires client", func(t *testing.T) {
		_, err := embedding.New(nil)
		gt.Value(t, err).NotNil()
	})
}
