package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

// Close closes closer and logs a failure. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// CloseIf closes v when it holds resources, e.g. a document source backed by
// a storage client. Other values are ignored.
func CloseIf(ctx context.Context, v any) {
	if closer, ok := v.(io.Closer); ok {
		Close(ctx, closer)
	}
}
