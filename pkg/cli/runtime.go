package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/cli/config"
	"github.com/secmon-lab/syllabus/pkg/service/chunker"
	"github.com/secmon-lab/syllabus/pkg/service/embedding"
	"github.com/secmon-lab/syllabus/pkg/service/retrieval"
	"github.com/secmon-lab/syllabus/pkg/usecase"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// runtimeConfig groups the flags every command that touches the indexes needs.
type runtimeConfig struct {
	app     config.App
	llm     config.LLM
	repo    config.Repository
	session config.Session

	embeddingRPS   float64
	embeddingBurst int
}

func (r *runtimeConfig) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.FloatFlag{
			Name:        "embedding-rps",
			Usage:       "Embedding requests per second (0 disables throttling)",
			Value:       5,
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_EMBEDDING_RPS"),
			Destination: &r.embeddingRPS,
		},
		&cli.IntFlag{
			Name:        "embedding-burst",
			Usage:       "Embedding request burst size",
			Value:       1,
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_EMBEDDING_BURST"),
			Destination: &r.embeddingBurst,
		},
	}
	flags = append(flags, r.app.Flags()...)
	flags = append(flags, r.llm.Flags()...)
	flags = append(flags, r.repo.Flags()...)
	flags = append(flags, r.session.Flags()...)
	return flags
}

// runtime holds the wired use cases of one command invocation.
type runtime struct {
	settings *config.Settings
	uc       *usecase.UseCases
	closers  []func()
}

// Close releases connections in reverse order of creation
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func (r *runtimeConfig) build(ctx context.Context, c *cli.Command) (*runtime, error) {
	settings, err := r.app.Load(c)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load settings")
	}

	logging.Default().Info("Configuration loaded",
		"settings", slog.GroupValue(settings.LogAttrs()...),
		"llm", slog.GroupValue(r.llm.LogAttrs()...),
		"repository", slog.GroupValue(r.repo.LogAttrs()...),
		"session", slog.GroupValue(r.session.LogAttrs()...),
	)

	rt := &runtime{settings: settings}

	chat, embedClient, err := r.llm.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure LLM")
	}

	embedder, err := embedding.New(embedClient,
		embedding.WithDimension(settings.EmbeddingDimension),
		embedding.WithRateLimit(r.embeddingRPS, r.embeddingBurst),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding service")
	}

	repo, err := r.repo.Configure(ctx, settings.EmbeddingDimension)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	rt.closers = append(rt.closers, func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	})

	sessions, closeSessions, err := r.session.Configure(ctx, settings.MaxHistory, settings.SessionTTL)
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to initialize session store")
	}
	rt.closers = append(rt.closers, closeSessions)

	uc, err := usecase.New(repo, chat, embedder,
		usecase.WithSessionStore(sessions),
		usecase.WithChunker(chunker.New(
			chunker.WithChunkSize(settings.ChunkSize),
			chunker.WithOverlap(settings.ChunkOverlap),
		)),
		usecase.WithRetrievalOptions(
			retrieval.WithTopK(settings.MaxResults),
			retrieval.WithMinScore(settings.MinScore),
		),
	)
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to initialize use cases")
	}
	rt.uc = uc

	return rt, nil
}
