package session

import (
	"time"

	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

const (
	DefaultTTL     = 24 * time.Hour
	defaultLockTTL = 2 * time.Minute
)

type options struct {
	maxHistory int
	ttl        time.Duration
	lockTTL    time.Duration
	keyPrefix  string
}

func defaultOptions() options {
	return options{
		maxHistory: model.DefaultMaxHistory,
		ttl:        DefaultTTL,
		lockTTL:    defaultLockTTL,
		keyPrefix:  "syllabus:session:",
	}
}

type Option func(*options)

// WithMaxHistory sets the number of exchanges (user + assistant turn pairs) kept per session.
func WithMaxHistory(n int) Option {
	return func(o *options) {
		o.maxHistory = n
	}
}

// WithTTL sets how long an idle session is kept.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithLockTTL bounds how long a distributed session lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.lockTTL = ttl
	}
}

// WithKeyPrefix namespaces redis keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

func copyTurns(turns []*model.Turn) []*model.Turn {
	copied := make([]*model.Turn, len(turns))
	for i, t := range turns {
		turn := *t
		copied[i] = &turn
	}
	return copied
}
