package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/engview/internal/metadata"
	"github.com/morozRed/engview/internal/queue"
)

var fastWatch = WatchOptions{StabilityThreshold: 40 * time.Millisecond, PollInterval: 10 * time.Millisecond}

func startWatcher(t *testing.T, s *Scanner) <-chan WatchEvent {
	t.Helper()
	w, err := s.Watch(fastWatch)
	require.NoError(t, err)

	events := make(chan WatchEvent, 16)
	w.OnEvent(func(ev WatchEvent) { events <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return events
}

func nextEvent(t *testing.T, events <-chan WatchEvent) WatchEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event")
		return WatchEvent{}
	}
}

func TestWatcherExtractsNewNarrativeFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Existing.prt", narrativeContent, time.Time{})
	s := f.scanner(nil)
	events := startWatcher(t, s)

	f.write(t, "clients/Fresh.prt", narrativeContent, time.Time{})

	ev := nextEvent(t, events)
	assert.Equal(t, FileAdded, ev.Kind)
	assert.Equal(t, "fresh", ev.ID)
	assert.True(t, ev.Scheduled)
	assert.NoError(t, ev.Err)

	assert.True(t, f.store.Has("fresh"))
	assert.False(t, f.store.Has("existing"), "pre-existing files are left to the startup scan")
}

func TestWatcherQueuesChangedNarrativeAtHighPriority(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Vesta.prt", narrativeContent, time.Now().Add(-time.Hour))
	_, err := f.store.UpdateAuto("vesta", metadata.AutoMetadata{Cylinders: 2})
	require.NoError(t, err)

	metrics := queue.NewMetrics(prometheus.NewRegistry())
	q := queue.New(queue.Options{Concurrency: 1, Metrics: metrics})
	s := f.scanner(q)
	require.False(t, s.ShouldReExtract(filepath.Join(f.root, "Vesta.prt"), "vesta"))

	events := startWatcher(t, s)
	f.write(t, "Vesta.prt", narrativeContent, time.Now().Add(time.Minute))

	ev := nextEvent(t, events)
	assert.Equal(t, FileChanged, ev.Kind)
	assert.Equal(t, "changed", ev.Kind.String())
	assert.Equal(t, "vesta", ev.ID)
	assert.True(t, ev.Scheduled)
	assert.NoError(t, ev.Err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Enqueued.WithLabelValues(queue.PriorityHigh.String())))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Enqueued.WithLabelValues(queue.PriorityLow.String())))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.WaitIdle(ctx))

	doc, err := f.store.Get("vesta")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 4, doc.Auto.Cylinders)
}

func TestWatcherKeepsMetadataOnRemove(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "Keep.prt", narrativeContent, time.Time{})
	_, err := f.store.UpdateAuto("keep", metadata.AutoMetadata{Cylinders: 4})
	require.NoError(t, err)

	events := startWatcher(t, f.scanner(nil))
	require.NoError(t, os.Remove(path))

	ev := nextEvent(t, events)
	assert.Equal(t, FileRemoved, ev.Kind)
	assert.Equal(t, "keep", ev.ID)
	assert.True(t, f.store.Has("keep"))
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	f := newFixture(t)
	events := startWatcher(t, f.scanner(nil))

	f.write(t, "notes.txt", "hello", time.Time{})
	f.write(t, "New.det", detContent, time.Time{})

	ev := nextEvent(t, events)
	assert.Equal(t, "new", ev.ID)
	assert.False(t, ev.Scheduled, "tabular files need no extraction")
	assert.False(t, f.store.Has("new"))
}

func TestWaitStableWaitsForSizeToSettle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.prt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))

	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(15 * time.Millisecond)
			fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return
			}
			_, _ = fh.WriteString("more")
			_ = fh.Close()
		}
	}()

	start := time.Now()
	require.NoError(t, waitStable(context.Background(), path, 60*time.Millisecond, 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(13), info.Size())
}

func TestWaitStableMissingFile(t *testing.T) {
	err := waitStable(context.Background(), filepath.Join(t.TempDir(), "gone"), time.Millisecond, time.Millisecond)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
