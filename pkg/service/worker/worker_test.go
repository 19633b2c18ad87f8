package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/service/worker"
	"github.com/secmon-lab/syllabus/pkg/usecase"
)

// mockIngester records calls and signals them on channels
type mockIngester struct {
	mu          sync.Mutex
	sourceCalls int
	files       []string
	sourceErr   error

	sourceCh chan struct{}
	fileCh   chan string
}

func newMockIngester() *mockIngester {
	return &mockIngester{
		sourceCh: make(chan struct{}, 16),
		fileCh:   make(chan string, 16),
	}
}

func (m *mockIngester) IngestSource(ctx context.Context, src loader.Source, clear bool) (*usecase.IngestReport, error) {
	m.mu.Lock()
	m.sourceCalls++
	err := m.sourceErr
	m.mu.Unlock()

	select {
	case m.sourceCh <- struct{}{}:
	default:
	}
	if err != nil {
		return nil, err
	}
	return &usecase.IngestReport{Courses: []string{"Intro to MCP"}}, nil
}

func (m *mockIngester) IngestFile(ctx context.Context, src loader.Source, name string) (*model.Course, error) {
	m.mu.Lock()
	m.files = append(m.files, name)
	m.mu.Unlock()

	select {
	case m.fileCh <- name:
	default:
	}
	return &model.Course{Title: name}, nil
}

func waitSignal[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingestion")
	}
	var zero T
	return zero
}

func TestResyncWorker(t *testing.T) {
	t.Run("syncs immediately and on each tick", func(t *testing.T) {
		ing := newMockIngester()
		dir, err := loader.NewDir(t.TempDir())
		gt.NoError(t, err).Required()

		w := worker.NewResyncWorker(ing, dir, 20*time.Millisecond)
		gt.NoError(t, w.Start(context.Background())).Required()

		waitSignal(t, ing.sourceCh)
		waitSignal(t, ing.sourceCh)
		w.Stop()

		ing.mu.Lock()
		defer ing.mu.Unlock()
		gt.Bool(t, ing.sourceCalls >= 2).True()
	})

	t.Run("keeps running after a failed sync", func(t *testing.T) {
		ing := newMockIngester()
		ing.sourceErr = goerr.New("index unavailable")
		dir, err := loader.NewDir(t.TempDir())
		gt.NoError(t, err).Required()

		w := worker.NewResyncWorker(ing, dir, 20*time.Millisecond)
		gt.NoError(t, w.Start(context.Background())).Required()

		waitSignal(t, ing.sourceCh)
		waitSignal(t, ing.sourceCh)
		w.Stop()
	})

	t.Run("rejects a non-positive interval", func(t *testing.T) {
		dir, err := loader.NewDir(t.TempDir())
		gt.NoError(t, err).Required()
		w := worker.NewResyncWorker(newMockIngester(), dir, 0)
		gt.Error(t, w.Start(context.Background()))
	})
}

func TestDocsWatcher(t *testing.T) {
	root := t.TempDir()
	dir, err := loader.NewDir(root)
	gt.NoError(t, err).Required()

	ing := newMockIngester()
	w := worker.NewDocsWatcher(ing, dir, worker.WithDebounce(100*time.Millisecond))
	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	// Non-transcript files are ignored
	gt.NoError(t, os.WriteFile(filepath.Join(root, "handout.docx"), []byte("PK"), 0o600)).Required()

	path := filepath.Join(root, "course1_script.txt")
	for i := 0; i < 3; i++ {
		gt.NoError(t, os.WriteFile(path, []byte("Course Title: Intro to MCP\n"), 0o600)).Required()
	}

	name := waitSignal(t, ing.fileCh)
	gt.Value(t, name).Equal("course1_script.txt")

	// A burst of writes is ingested once
	select {
	case extra := <-ing.fileCh:
		t.Errorf("unexpected second ingestion of %s", extra)
	case <-time.After(300 * time.Millisecond):
	}
}
