package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/syllabus/pkg/agent/tool"
	"github.com/secmon-lab/syllabus/pkg/agent/tool/course"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/repository/session"
	"github.com/secmon-lab/syllabus/pkg/service/chunker"
	"github.com/secmon-lab/syllabus/pkg/service/retrieval"
)

type UseCases struct {
	repo          interfaces.Repository
	sessions      interfaces.SessionStore
	chunker       *chunker.Chunker
	retrievalOpts []retrieval.Option

	Retrieval *retrieval.Service
	Query     *QueryUseCase
	Ingest    *IngestUseCase
}

type Option func(*UseCases)

// WithSessionStore sets the conversation history backend. Defaults to in-memory.
func WithSessionStore(store interfaces.SessionStore) Option {
	return func(uc *UseCases) {
		uc.sessions = store
	}
}

func WithChunker(c *chunker.Chunker) Option {
	return func(uc *UseCases) {
		uc.chunker = c
	}
}

func WithRetrievalOptions(opts ...retrieval.Option) Option {
	return func(uc *UseCases) {
		uc.retrievalOpts = append(uc.retrievalOpts, opts...)
	}
}

// New wires the query and ingestion use cases. llm drives generation and
// embedder produces the vectors stored in repo.
func New(repo interfaces.Repository, llm gollem.LLMClient, embedder retrieval.Embedder, opts ...Option) (*UseCases, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	uc := &UseCases{
		repo: repo,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.sessions == nil {
		uc.sessions = session.NewMemory()
	}
	if uc.chunker == nil {
		uc.chunker = chunker.New()
	}

	uc.Retrieval = retrieval.New(repo, embedder, uc.retrievalOpts...)

	registry, err := tool.NewRegistry(course.New(uc.Retrieval)...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to register tools")
	}

	uc.Query = NewQueryUseCase(llm, registry, uc.Retrieval, uc.sessions)
	uc.Ingest = NewIngestUseCase(repo, uc.chunker, embedder)

	return uc, nil
}
