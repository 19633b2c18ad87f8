package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/repository/session"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Session holds CLI flags for the conversation history backend
type Session struct {
	backend  string
	redisURL string `masq:"secret"`
}

// Flags returns CLI flags for session configuration
func (s *Session) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "session-backend",
			Usage:       "Session store backend (memory, redis)",
			Value:       BackendMemory,
			Category:    "Session",
			Sources:     cli.EnvVars("SYLLABUS_SESSION_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Usage:       "Redis URL, e.g. redis://localhost:6379/0 (required when using redis backend)",
			Category:    "Session",
			Sources:     cli.EnvVars("SYLLABUS_REDIS_URL"),
			Destination: &s.redisURL,
		},
	}
}

// LogAttrs returns log attributes for the session configuration
func (s *Session) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", s.backend),
		slog.Bool("redis_url_set", s.redisURL != ""),
	}
}

// Configure creates the session store. The returned func releases its connections.
func (s *Session) Configure(ctx context.Context, maxHistory int, ttl time.Duration) (interfaces.SessionStore, func(), error) {
	opts := []session.Option{
		session.WithMaxHistory(maxHistory),
		session.WithTTL(ttl),
	}

	switch s.backend {
	case BackendMemory, "":
		logging.Default().Info("Using in-memory session store")
		return session.NewMemory(opts...), func() {}, nil

	case "redis":
		if s.redisURL == "" {
			return nil, nil, goerr.Wrap(ErrInvalidConfig, "redis-url is required when using redis session backend")
		}
		client, err := session.DialRedis(ctx, s.redisURL)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := client.Close(); err != nil {
				logging.Default().Error("failed to close redis client", "error", err.Error())
			}
		}
		logging.Default().Info("Using redis session store")
		return session.NewRedis(client, opts...), closer, nil

	default:
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "invalid session backend", goerr.V(BackendKey, s.backend))
	}
}
