package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/usecase"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

// Ingester is the subset of the ingestion use case the workers drive.
type Ingester interface {
	IngestSource(ctx context.Context, src loader.Source, clear bool) (*usecase.IngestReport, error)
	IngestFile(ctx context.Context, src loader.Source, name string) (*model.Course, error)
}

// ResyncWorker periodically ingests a document source so that courses added
// after startup become searchable. Courses already cataloged are skipped.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
type ResyncWorker struct {
	ingester Ingester
	src      loader.Source
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewResyncWorker creates a worker ingesting src every interval
func NewResyncWorker(ingester Ingester, src loader.Source, interval time.Duration) *ResyncWorker {
	return &ResyncWorker{
		ingester: ingester,
		src:      src,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background loop. The first sync runs immediately and does
// not block the caller.
func (w *ResyncWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return goerr.New("resync interval must be positive", goerr.V("interval", w.interval))
	}

	logging.From(ctx).Info("Document resync worker starting",
		"source", w.src.String(),
		"interval", w.interval.String())

	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *ResyncWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Document resync worker stopped")
}

func (w *ResyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.sync(ctx); err != nil {
		logging.From(ctx).Error("Initial document sync failed (will retry next interval)", "error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sync(ctx); err != nil {
				logging.From(ctx).Error("Document sync failed (will retry next interval)", "error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *ResyncWorker) sync(ctx context.Context) error {
	startTime := time.Now()

	report, err := w.ingester.IngestSource(ctx, w.src, false)
	if err != nil {
		return goerr.Wrap(err, "failed to ingest documents", goerr.V("source", w.src.String()))
	}

	logging.From(ctx).Info("Document sync completed",
		"added", len(report.Courses),
		"existing", len(report.Existing),
		"failed", len(report.Failed),
		"duration", time.Since(startTime).String())
	return nil
}
