package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitpro/fitsync/internal/adapter"
	"github.com/fitpro/fitsync/internal/domain"
	"github.com/fitpro/fitsync/internal/reactive"
)

// slowWriter blocks its first write until released.
type slowWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (w *slowWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.release
	})
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *slowWriter) lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Split(strings.TrimSpace(w.buf.String()), "\n")
}

func (w *slowWriter) lastRevision() int64 {
	lines := w.lines()
	var report StatusReport
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &report); err != nil {
		return -1
	}
	return report.Revision
}

func TestStreamViewsKeepsLatestView(t *testing.T) {
	store, writer := reactive.New()
	writer.Reset("u1", domain.StateLive)
	app := &App{Store: store, Catalog: reportCatalog(), Logger: adapter.NullLogger()}

	w := &slowWriter{started: make(chan struct{}), release: make(chan struct{})}
	out := &OutputFormatter{Format: "json", Writer: w}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- streamViews(ctx, app, out) }()

	<-w.started
	for rev := 1; rev <= 40; rev++ {
		writer.ApplySnapshot(domain.Snapshot{
			UserID:   "u1",
			Courses:  []domain.EnrolledCourse{},
			Progress: domain.ProgressMap{},
			Revision: domain.Revision(rev),
		}, false)
	}
	close(w.release)

	assert.Eventually(t, func() bool {
		return w.lastRevision() == 40
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.LessOrEqual(t, len(w.lines()), 3, "intermediate views are skipped")
}
