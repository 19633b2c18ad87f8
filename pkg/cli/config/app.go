package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/repository/session"
	"github.com/secmon-lab/syllabus/pkg/service/chunker"
	"github.com/secmon-lab/syllabus/pkg/service/retrieval"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// AppFile is the optional configuration file. Zero values keep the defaults.
type AppFile struct {
	ChunkSize          int     `toml:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap       int     `toml:"chunk_overlap" yaml:"chunk_overlap"`
	MaxResults         int     `toml:"max_results" yaml:"max_results"`
	MaxHistory         int     `toml:"max_history" yaml:"max_history"`
	EmbeddingDimension int     `toml:"embedding_dimension" yaml:"embedding_dimension"`
	SessionTTL         string  `toml:"session_ttl" yaml:"session_ttl"`
	MinScore           float64 `toml:"min_score" yaml:"min_score"`
}

// Settings are the resolved tuning parameters.
type Settings struct {
	ChunkSize          int
	ChunkOverlap       int
	MaxResults         int
	MaxHistory         int
	EmbeddingDimension int
	SessionTTL         time.Duration
	MinScore           float64
}

// DefaultSettings returns the built-in tuning parameters.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:          chunker.DefaultChunkSize,
		ChunkOverlap:       chunker.DefaultOverlap,
		MaxResults:         retrieval.DefaultTopK,
		MaxHistory:         model.DefaultMaxHistory,
		EmbeddingDimension: model.EmbeddingDimension,
		SessionTTL:         session.DefaultTTL,
	}
}

// Validate checks the settings for values no component can work with
func (s *Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "chunk size must be positive", goerr.V(FieldKey, "chunk_size"), goerr.V("value", s.ChunkSize))
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return goerr.Wrap(ErrInvalidConfig, "chunk overlap must be in [0, chunk_size)", goerr.V(FieldKey, "chunk_overlap"), goerr.V("value", s.ChunkOverlap))
	}
	if s.MaxResults <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "max results must be positive", goerr.V(FieldKey, "max_results"), goerr.V("value", s.MaxResults))
	}
	if s.MaxHistory < 0 {
		return goerr.Wrap(ErrInvalidConfig, "max history must not be negative", goerr.V(FieldKey, "max_history"), goerr.V("value", s.MaxHistory))
	}
	if s.EmbeddingDimension <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding dimension must be positive", goerr.V(FieldKey, "embedding_dimension"), goerr.V("value", s.EmbeddingDimension))
	}
	if s.SessionTTL <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "session ttl must be positive", goerr.V(FieldKey, "session_ttl"), goerr.V("value", s.SessionTTL))
	}
	if s.MinScore < 0 || s.MinScore >= 1 {
		return goerr.Wrap(ErrInvalidConfig, "min score must be in [0, 1)", goerr.V(FieldKey, "min_score"), goerr.V("value", s.MinScore))
	}
	return nil
}

func (s *Settings) apply(f *AppFile) error {
	if f.ChunkSize != 0 {
		s.ChunkSize = f.ChunkSize
	}
	if f.ChunkOverlap != 0 {
		s.ChunkOverlap = f.ChunkOverlap
	}
	if f.MaxResults != 0 {
		s.MaxResults = f.MaxResults
	}
	if f.MaxHistory != 0 {
		s.MaxHistory = f.MaxHistory
	}
	if f.EmbeddingDimension != 0 {
		s.EmbeddingDimension = f.EmbeddingDimension
	}
	if f.SessionTTL != "" {
		ttl, err := time.ParseDuration(f.SessionTTL)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid session ttl", goerr.V(FieldKey, "session_ttl"), goerr.V("value", f.SessionTTL))
		}
		s.SessionTTL = ttl
	}
	if f.MinScore != 0 {
		s.MinScore = f.MinScore
	}
	return nil
}

// LoadAppFile reads a TOML or YAML configuration file, chosen by extension.
func LoadAppFile(path string) (*AppFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var file AppFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse YAML config", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
		}
	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unsupported config file extension", goerr.V(ConfigPathKey, path), goerr.V("ext", ext))
	}

	return &file, nil
}

// App holds CLI flags for tuning parameters. Flags override the config file,
// which overrides the defaults.
type App struct {
	configPath         string
	chunkSize          int
	chunkOverlap       int
	maxResults         int
	maxHistory         int
	embeddingDimension int
	sessionTTL         time.Duration
	minScore           float64
}

// Flags returns CLI flags for tuning parameters
func (a *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a TOML or YAML config file",
			Sources:     cli.EnvVars("SYLLABUS_CONFIG"),
			Destination: &a.configPath,
		},
		&cli.IntFlag{
			Name:        "chunk-size",
			Usage:       "Chunk size in characters",
			Category:    "Tuning",
			Sources:     cli.EnvVars("SYLLABUS_CHUNK_SIZE"),
			Destination: &a.chunkSize,
		},
		&cli.IntFlag{
			Name:        "chunk-overlap",
			Usage:       "Characters shared by adjacent chunks",
			Category:    "Tuning",
			Sources:     cli.EnvVars("SYLLABUS_CHUNK_OVERLAP"),
			Destination: &a.chunkOverlap,
		},
		&cli.IntFlag{
			Name:        "max-results",
			Usage:       "Number of chunks returned by a search",
			Category:    "Tuning",
			Sources:     cli.EnvVars("SYLLABUS_MAX_RESULTS"),
			Destination: &a.maxResults,
		},
		&cli.IntFlag{
			Name:        "max-history",
			Usage:       "Exchanges kept per session",
			Category:    "Tuning",
			Sources:     cli.EnvVars("SYLLABUS_MAX_HISTORY"),
			Destination: &a.maxHistory,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector size",
			Category:    "Tuning",
			Sources:     cli.EnvVars("SYLLABUS_EMBEDDING_DIMENSION"),
			Destination: &a.embeddingDimension,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Idle time after which a session is dropped",
			Category:    "Tuning",
			Sources:     cli.EnvVars("SYLLABUS_SESSION_TTL"),
			Destination: &a.sessionTTL,
		},
		&cli.FloatFlag{
			Name:        "min-score",
			Usage:       "Similarity a course name match must exceed",
			Category:    "Tuning",
			Sources:     cli.EnvVars("SYLLABUS_MIN_SCORE"),
			Destination: &a.minScore,
		},
	}
}

// Load resolves the settings from defaults, the config file and flags set on c.
func (a *App) Load(c *cli.Command) (*Settings, error) {
	settings := DefaultSettings()

	if a.configPath != "" {
		file, err := LoadAppFile(a.configPath)
		if err != nil {
			return nil, err
		}
		if err := settings.apply(file); err != nil {
			return nil, goerr.Wrap(err, "invalid config file", goerr.V(ConfigPathKey, a.configPath))
		}
	}

	if c.IsSet("chunk-size") {
		settings.ChunkSize = a.chunkSize
	}
	if c.IsSet("chunk-overlap") {
		settings.ChunkOverlap = a.chunkOverlap
	}
	if c.IsSet("max-results") {
		settings.MaxResults = a.maxResults
	}
	if c.IsSet("max-history") {
		settings.MaxHistory = a.maxHistory
	}
	if c.IsSet("embedding-dimension") {
		settings.EmbeddingDimension = a.embeddingDimension
	}
	if c.IsSet("session-ttl") {
		settings.SessionTTL = a.sessionTTL
	}
	if c.IsSet("min-score") {
		settings.MinScore = a.minScore
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// LogAttrs returns log attributes for the resolved settings
func (s *Settings) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("chunk_size", s.ChunkSize),
		slog.Int("chunk_overlap", s.ChunkOverlap),
		slog.Int("max_results", s.MaxResults),
		slog.Int("max_history", s.MaxHistory),
		slog.Int("embedding_dimension", s.EmbeddingDimension),
		slog.Duration("session_ttl", s.SessionTTL),
		slog.Float64("min_score", s.MinScore),
	}
}
