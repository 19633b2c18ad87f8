package tool

import (
	"context"
	"fmt"

	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

// UpdateFunc receives progress messages while a tool runs, e.g. to show them
// in a terminal.
type UpdateFunc func(ctx context.Context, message string)

type updateKey struct{}

// WithUpdate returns a context whose tool progress is passed to fn.
func WithUpdate(ctx context.Context, fn UpdateFunc) context.Context {
	return context.WithValue(ctx, updateKey{}, fn)
}

// Update reports progress. The message is always logged at debug level and
// forwarded to the UpdateFunc of ctx, if any.
func Update(ctx context.Context, message string) {
	logging.From(ctx).Debug("tool progress", "message", message)
	if fn, ok := ctx.Value(updateKey{}).(UpdateFunc); ok {
		fn(ctx, message)
	}
}

// Updatef is Update with a format string.
func Updatef(ctx context.Context, format string, args ...any) {
	Update(ctx, fmt.Sprintf(format, args...))
}
