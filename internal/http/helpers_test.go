package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storyreader/internal/database"
	"github.com/mrlokans/storyreader/internal/database/books"
	"github.com/mrlokans/storyreader/internal/database/chapters"
	progressrepo "github.com/mrlokans/storyreader/internal/database/progress"
	"github.com/mrlokans/storyreader/internal/database/settings"
	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/preferences"
	"github.com/mrlokans/storyreader/internal/progress"
	"github.com/mrlokans/storyreader/internal/remote"
	"github.com/mrlokans/storyreader/internal/session"
)

// storyAPI is a fake story API serving books and chapters from memory.
type storyAPI struct {
	mu       sync.Mutex
	books    map[string]remote.Book
	chapters map[string]remote.Chapter
	failing  bool
	server   *httptest.Server
}

func newStoryAPI(t *testing.T) *storyAPI {
	api := &storyAPI{books: map[string]remote.Book{}, chapters: map[string]remote.Chapter{}}
	api.server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.server.Close)
	return api
}

func (a *storyAPI) serve(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failing {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var payload any
	var ok bool
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/books/"):
		payload, ok = a.books[strings.TrimPrefix(r.URL.Path, "/api/books/")]
	case strings.HasPrefix(r.URL.Path, "/api/chapters/"):
		payload, ok = a.chapters[strings.TrimPrefix(r.URL.Path, "/api/chapters/")]
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *storyAPI) setFailing(failing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failing = failing
}

func (a *storyAPI) setBook(b remote.Book) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.books[b.ID] = b
}

func (a *storyAPI) setChapter(ch remote.Chapter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chapters[ch.ID] = ch
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
}

func (q *recordingQueue) Enqueue(t ...backlite.Task) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t...)
	ids := make([]string, len(t))
	for i := range ids {
		ids[i] = fmt.Sprintf("task-%d", len(q.tasks)-len(t)+i+1)
	}
	return ids, nil
}

// Status reports every recorded task as pending.
func (q *recordingQueue) Status(_ context.Context, taskID string) (backlite.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.tasks {
		if taskID == fmt.Sprintf("task-%d", i+1) {
			return backlite.TaskStatusPending, nil
		}
	}
	if taskID == "broken" {
		return backlite.TaskStatusNotFound, errors.New("tasks db locked")
	}
	return backlite.TaskStatusNotFound, nil
}

type testEnv struct {
	router   *gin.Engine
	db       *database.Database
	books    *books.Repository
	chapters *chapters.Repository
	progress *progressrepo.Repository
	tracker  *progress.Tracker
	prefs    *preferences.Store
	manager  *session.Manager
	api      *storyAPI
}

func newTestEnv(t *testing.T, queue *recordingQueue) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "reader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		books:    books.NewRepository(db.DB),
		chapters: chapters.NewRepository(db.DB),
		progress: progressrepo.NewRepository(db.DB),
		api:      newStoryAPI(t),
	}
	env.seed(t)

	env.prefs, err = preferences.NewStore(settings.NewRepository(db.DB), preferences.Preferences{
		ChapterSortAscending: true,
		NarrationEnabled:     true,
		NarrationWPM:         180,
	})
	require.NoError(t, err)
	t.Cleanup(env.prefs.Close)

	env.tracker = progress.NewTracker(env.progress, env.chapters)
	t.Cleanup(env.tracker.Close)

	syncer := library.NewSyncer(remote.NewClient(env.api.server.URL, "", 0), env.chapters, env.books)

	env.manager = session.NewManager(session.NewFactory(session.Deps{
		Chapters:    env.chapters,
		Refresher:   syncer,
		Positions:   env.tracker,
		Preferences: env.prefs,
		Defaults:    env.prefs.Get(),
	}))
	t.Cleanup(env.manager.Shutdown)

	cfg := RouterConfig{
		Health:      db,
		Books:       env.books,
		Chapters:    env.chapters,
		Progress:    env.progress,
		Refresher:   syncer,
		Positions:   env.tracker,
		Preferences: env.prefs,
		Sessions:    env.manager,
		Version:     "test",
	}
	if queue != nil {
		cfg.TaskQueue = queue
		cfg.TaskStatus = queue
	}
	env.router = NewRouter(cfg)
	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, e.books.UpsertBook(&entities.Book{ID: "b1", Title: "The Long Road", Author: "A. Writer", ChapterCount: 3}))
	for _, ch := range []entities.Chapter{
		{ID: "c1", BookID: "b1", Title: "One", Order: 1, Content: "Para one.\n\nPara two."},
		{ID: "c2", BookID: "b1", Title: "Two", Order: 2, Content: "Second chapter."},
		{ID: "c3", BookID: "b1", Title: "Three", Order: 3, Content: "Third chapter."},
	} {
		ch := ch
		require.NoError(t, e.chapters.UpsertChapter(&ch))
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func settingsRepo(e *testEnv) *settings.Repository {
	return settings.NewRepository(e.db.DB)
}

func remoteChapter(id, bookID, title string, order int, content string) remote.Chapter {
	return remote.Chapter{ID: id, BookID: bookID, Title: title, Order: order, Content: content}
}
