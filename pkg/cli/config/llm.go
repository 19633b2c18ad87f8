package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// LLM holds configuration of the generation and embedding providers
type LLM struct {
	provider          string
	model             string
	embeddingProvider string

	geminiProject  string
	geminiLocation string
	openaiAPIKey   string `masq:"secret"`
	claudeAPIKey   string `masq:"secret"`
}

// Flags returns CLI flags for LLM configuration
func (l *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider for answer generation (gemini, openai, claude)",
			Value:       ProviderGemini,
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_LLM_PROVIDER"),
			Destination: &l.provider,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Model name for answer generation (provider default if empty)",
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_LLM_MODEL"),
			Destination: &l.model,
		},
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding provider (gemini, openai). Defaults to --llm-provider",
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_EMBEDDING_PROVIDER"),
			Destination: &l.embeddingProvider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_GEMINI_PROJECT"),
			Destination: &l.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_GEMINI_LOCATION"),
			Destination: &l.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &l.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-api-key",
			Usage:       "Anthropic API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("SYLLABUS_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"),
			Destination: &l.claudeAPIKey,
		},
	}
}

// LogAttrs returns log attributes for the LLM configuration
func (l *LLM) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("provider", l.provider),
		slog.String("model", l.model),
		slog.String("embedding_provider", l.EmbeddingProvider()),
		slog.String("gemini_project", l.geminiProject),
		slog.String("gemini_location", l.geminiLocation),
		slog.Bool("openai_api_key_set", l.openaiAPIKey != ""),
		slog.Bool("claude_api_key_set", l.claudeAPIKey != ""),
	}
}

// EmbeddingProvider returns the embedding provider, falling back to the generation provider.
func (l *LLM) EmbeddingProvider() string {
	if l.embeddingProvider != "" {
		return l.embeddingProvider
	}
	return l.provider
}

// Validate checks provider names and credentials without contacting any API.
func (l *LLM) Validate() error {
	if err := l.validateProvider(l.provider); err != nil {
		return err
	}

	embed := l.EmbeddingProvider()
	if embed == ProviderClaude {
		return goerr.Wrap(ErrInvalidConfig, "claude does not provide embeddings, set --embedding-provider to gemini or openai",
			goerr.V(FieldKey, "embedding-provider"))
	}
	return l.validateProvider(embed)
}

func (l *LLM) validateProvider(provider string) error {
	switch provider {
	case ProviderGemini:
		if l.geminiProject == "" {
			return goerr.Wrap(ErrInvalidConfig, "gemini-project is required for gemini", goerr.V(FieldKey, "gemini-project"))
		}
	case ProviderOpenAI:
		if l.openaiAPIKey == "" {
			return goerr.Wrap(ErrInvalidConfig, "openai-api-key is required for openai", goerr.V(FieldKey, "openai-api-key"))
		}
	case ProviderClaude:
		if l.claudeAPIKey == "" {
			return goerr.Wrap(ErrInvalidConfig, "claude-api-key is required for claude", goerr.V(FieldKey, "claude-api-key"))
		}
	default:
		return goerr.Wrap(ErrInvalidConfig, "unknown LLM provider", goerr.V("provider", provider))
	}
	return nil
}

// Configure creates the generation client and the embedding client. They are
// the same client when both roles use one provider.
func (l *LLM) Configure(ctx context.Context) (chat gollem.LLMClient, embed gollem.LLMClient, err error) {
	if err := l.Validate(); err != nil {
		return nil, nil, err
	}

	chat, err = l.newClient(ctx, l.provider, l.model)
	if err != nil {
		return nil, nil, err
	}

	if l.EmbeddingProvider() == l.provider {
		return chat, chat, nil
	}

	embed, err = l.newClient(ctx, l.EmbeddingProvider(), "")
	if err != nil {
		return nil, nil, err
	}
	return chat, embed, nil
}

func (l *LLM) newClient(ctx context.Context, provider, model string) (gollem.LLMClient, error) {
	switch provider {
	case ProviderGemini:
		var opts []gemini.Option
		if model != "" {
			opts = append(opts, gemini.WithModel(model))
		}
		client, err := gemini.New(ctx, l.geminiProject, l.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case ProviderOpenAI:
		var opts []openai.Option
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		client, err := openai.New(ctx, l.openaiAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	case ProviderClaude:
		var opts []claude.Option
		if model != "" {
			opts = append(opts, claude.WithModel(model))
		}
		client, err := claude.New(ctx, l.claudeAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Claude client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown LLM provider", goerr.V("provider", provider))
	}
}
