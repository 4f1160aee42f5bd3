package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storyreader/internal/config"
	"github.com/mrlokans/storyreader/internal/library"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(t.TempDir(), "reader.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// signalRefresher reports every refreshed book on a channel.
type signalRefresher struct {
	books chan string
}

func (s signalRefresher) RefreshBook(_ context.Context, bookID string) (library.SyncResult, error) {
	s.books <- bookID
	return library.SyncResult{BookID: bookID}, nil
}

func TestNewClient_CreatesQueueDatabase(t *testing.T) {
	dir := t.TempDir()

	client, err := NewClient(filepath.Join(dir, "reader.db"), DefaultConfig())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "reader-tasks.db"))
	assert.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestClient_StopBeforeStart(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, client.Stop(ctx))
}

func TestClient_StartStop(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	client.Start(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx))
}

func TestClient_RunsQueuedRefresh(t *testing.T) {
	client := newTestClient(t)
	refresher := signalRefresher{books: make(chan string, 1)}
	client.Register(NewRefreshBookQueue(refresher), NewRefreshChapterQueue(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	ids, err := client.Enqueue(RefreshBookTask{BookID: "b1"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	select {
	case got := <-refresher.books:
		assert.Equal(t, "b1", got)
	case <-time.After(5 * time.Second):
		t.Fatal("book refresh did not run")
	}

	require.Eventually(t, func() bool {
		status, err := client.Status(context.Background(), ids[0])
		return err == nil && status == backlite.TaskStatusSuccess
	}, 5*time.Second, 20*time.Millisecond)

	again, err := client.Enqueue(RefreshBookTask{BookID: "b1"})
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], again[0])
}

func TestClient_EnqueueCoalescesPendingRefreshes(t *testing.T) {
	client := newTestClient(t)
	client.Register(NewRefreshBookQueue(nil), NewRefreshChapterQueue(nil))

	first, err := client.Enqueue(RefreshBookTask{BookID: "b1"})
	require.NoError(t, err)

	second, err := client.Enqueue(
		RefreshBookTask{BookID: "b2"},
		RefreshBookTask{BookID: "b1"},
		RefreshChapterTask{ChapterID: "b1"},
	)
	require.NoError(t, err)
	require.Len(t, second, 3)

	assert.Equal(t, first[0], second[1])
	assert.NotEqual(t, first[0], second[0])
	assert.NotEqual(t, first[0], second[2])

	status, err := client.Status(context.Background(), second[0])
	require.NoError(t, err)
	assert.Equal(t, backlite.TaskStatusPending, status)
}

func TestClient_EnqueueOnlyDuplicates(t *testing.T) {
	client := newTestClient(t)
	client.Register(NewRefreshBookQueue(nil), NewRefreshChapterQueue(nil))

	first, err := client.Enqueue(RefreshChapterTask{ChapterID: "c1"})
	require.NoError(t, err)

	again, err := client.Enqueue(RefreshChapterTask{ChapterID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "reader-tasks.db"), TasksDBPath(filepath.Join("data", "reader.db")))
	assert.Equal(t, "reader-tasks", TasksDBPath("reader"))
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.Tasks{Workers: 4, TaskTimeout: time.Minute})

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.TaskTimeout)
	assert.Equal(t, DefaultConfig().RetryDelay, cfg.RetryDelay)
}
