package interfaces

import (
	"context"

	"github.com/secmon-lab/syllabus/pkg/domain/model"
)

// SessionStore keeps a bounded conversation history per session.
type SessionStore interface {
	// History returns turns in chronological order; empty for an unknown session
	History(ctx context.Context, id model.SessionID) ([]*model.Turn, error)

	// Append adds turns and truncates the history to the configured number of exchanges
	Append(ctx context.Context, id model.SessionID, turns ...*model.Turn) error

	// Delete drops the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id model.SessionID) error

	// Lock serializes queries for the same session. The returned func releases the lock.
	Lock(ctx context.Context, id model.SessionID) (func(), error)
}
