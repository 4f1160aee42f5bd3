package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/remote"
)

type fakeFetcher struct {
	chapters map[string]*remote.Chapter
	books    map[string]*remote.Book
	err      error
}

func (f *fakeFetcher) FetchChapterDetail(_ context.Context, id string) (*remote.Chapter, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch, ok := f.chapters[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return ch, nil
}

func (f *fakeFetcher) FetchBookDetail(_ context.Context, id string) (*remote.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.books[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return b, nil
}

type memoryStore struct {
	chapters  map[string]entities.Chapter
	books     map[string]entities.Book
	upsertErr map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		chapters:  map[string]entities.Chapter{},
		books:     map[string]entities.Book{},
		upsertErr: map[string]error{},
	}
}

func (m *memoryStore) FindChapter(id string) (*entities.Chapter, error) {
	ch, ok := m.chapters[id]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (m *memoryStore) UpsertChapter(ch *entities.Chapter) error {
	if err := m.upsertErr[ch.ID]; err != nil {
		return err
	}
	m.chapters[ch.ID] = *ch
	return nil
}

func (m *memoryStore) UpsertBook(b *entities.Book) error {
	m.books[b.ID] = *b
	return nil
}

func (m *memoryStore) ListBookIDs() ([]string, error) {
	ids := make([]string, 0, len(m.books))
	for id := range m.books {
		ids = append(ids, id)
	}
	return ids, nil
}

type recordingReporter struct {
	started   int
	updates   int
	completed bool
	ok        bool
	skipped   int
	running   bool
}

func (r *recordingReporter) StartSync(total int) error { r.started = total; return nil }
func (r *recordingReporter) UpdateProgress(_, _, _, skipped int, _ string) error {
	r.updates++
	r.skipped = skipped
	return nil
}
func (r *recordingReporter) CompleteSync(ok bool, _ string) error {
	r.completed, r.ok = true, ok
	return nil
}
func (r *recordingReporter) IsSyncRunning() (bool, error) { return r.running, nil }

func TestMerge_PreservesLocalProgress(t *testing.T) {
	created := time.Now().Add(-24 * time.Hour)
	local := &entities.Chapter{
		ID:               "c1",
		BookID:           "b1",
		Title:            "Old title",
		Content:          "Old content",
		IsRead:           true,
		ReadProgress:     0.8,
		LastReadPosition: 42,
		LastReadOffset:   120,
		CreatedAt:        created,
	}
	server := remote.Chapter{ID: "c1", Title: "New title", Content: "New content here", Order: 4}

	merged := Merge(server, "b1", local)

	assert.Equal(t, "New title", merged.Title)
	assert.Equal(t, "New content here", merged.Content)
	assert.Equal(t, 4, merged.Order)
	assert.True(t, merged.IsRead)
	assert.Equal(t, 42, merged.LastReadPosition)
	assert.Equal(t, 120, merged.LastReadOffset)
	assert.InDelta(t, 0.8, merged.ReadProgress, 1e-9)
	assert.Equal(t, created, merged.CreatedAt)
	assert.Equal(t, 3, merged.WordCount)
}

func TestMerge_NoLocal(t *testing.T) {
	server := remote.Chapter{
		ID:      "c1",
		BookID:  "b9",
		Title:   "Fresh",
		Content: "one two",
		Images:  []remote.Image{{URL: "https://img/1.png", Caption: "cap"}},
	}

	merged := Merge(server, "", nil)

	assert.Equal(t, "b9", merged.BookID)
	assert.False(t, merged.IsRead)
	assert.Zero(t, merged.LastReadPosition)
	assert.Zero(t, merged.LastReadOffset)
	assert.Zero(t, merged.ReadProgress)
	assert.Equal(t, []entities.ChapterImage{{URL: "https://img/1.png", Caption: "cap"}}, merged.Images)
}

func TestMerge_SummaryKeepsLocalContent(t *testing.T) {
	local := &entities.Chapter{
		ID:      "c1",
		BookID:  "b1",
		Content: "Cached body text",
		Images:  []entities.ChapterImage{{URL: "https://img/old.png"}},
	}

	merged := Merge(remote.Chapter{ID: "c1", Title: "Renamed", Order: 2}, "b1", local)

	assert.Equal(t, "Renamed", merged.Title)
	assert.Equal(t, "Cached body text", merged.Content)
	assert.Equal(t, local.Images, merged.Images)
	assert.Equal(t, 3, merged.WordCount)
}

func TestSyncer_RefreshChapter(t *testing.T) {
	t.Run("merges and persists", func(t *testing.T) {
		store := newMemoryStore()
		store.chapters["c1"] = entities.Chapter{ID: "c1", BookID: "b1", Title: "Old", IsRead: true, LastReadPosition: 42}
		fetcher := &fakeFetcher{chapters: map[string]*remote.Chapter{
			"c1": {ID: "c1", Title: "New", Content: "Body text"},
		}}

		syncer := NewSyncer(fetcher, store, store)
		merged, err := syncer.RefreshChapter(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "New", merged.Title)
		assert.Equal(t, "b1", merged.BookID)

		stored := store.chapters["c1"]
		assert.Equal(t, "Body text", stored.Content)
		assert.True(t, stored.IsRead)
		assert.Equal(t, 42, stored.LastReadPosition)
	})

	t.Run("fetch failure keeps local state", func(t *testing.T) {
		store := newMemoryStore()
		original := entities.Chapter{ID: "c1", Title: "Local", Content: "Keep me", LastReadPosition: 3}
		store.chapters["c1"] = original

		syncer := NewSyncer(&fakeFetcher{err: errors.New("connection refused")}, store, store)
		_, err := syncer.RefreshChapter(context.Background(), "c1")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.Equal(t, original, store.chapters["c1"])
	})

	t.Run("server chapter without id is rejected", func(t *testing.T) {
		store := newMemoryStore()
		fetcher := &fakeFetcher{chapters: map[string]*remote.Chapter{"c1": {Title: "No id"}}}

		_, err := NewSyncer(fetcher, store, store).RefreshChapter(context.Background(), "c1")
		assert.ErrorIs(t, err, ErrInvalidChapter)
		assert.Empty(t, store.chapters)
	})
}

func TestSyncer_RefreshBook(t *testing.T) {
	store := newMemoryStore()
	store.chapters["c1"] = entities.Chapter{ID: "c1", BookID: "b1", Content: "Cached", IsRead: true, LastReadPosition: 9}
	store.upsertErr["c3"] = errors.New("disk full")

	fetcher := &fakeFetcher{books: map[string]*remote.Book{
		"b1": {
			ID:     "b1",
			Title:  "Story",
			Author: "Author",
			Chapters: []remote.Chapter{
				{ID: "c1", Title: "One", Order: 1},
				{ID: "", Title: "Broken", Order: 2},
				{ID: "c2", Title: "Two", Order: 3, Content: "Second body"},
				{ID: "  ", Title: "Blank", Order: 4},
				{ID: "c3", Title: "Three", Order: 5},
			},
		},
	}}

	result, err := NewSyncer(fetcher, store, store).RefreshBook(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, SyncResult{BookID: "b1", Merged: 2, Skipped: 2, Failed: 1}, result)

	assert.Equal(t, "Story", store.books["b1"].Title)
	assert.Equal(t, 3, store.books["b1"].ChapterCount)

	c1 := store.chapters["c1"]
	assert.Equal(t, "One", c1.Title)
	assert.Equal(t, "Cached", c1.Content)
	assert.True(t, c1.IsRead)
	assert.Equal(t, 9, c1.LastReadPosition)

	c2 := store.chapters["c2"]
	assert.Equal(t, "b1", c2.BookID)
	assert.False(t, c2.IsRead)
	_, hasBroken := store.chapters[""]
	assert.False(t, hasBroken)
}

func TestSyncer_RefreshBookFetchFailure(t *testing.T) {
	store := newMemoryStore()
	_, err := NewSyncer(&fakeFetcher{err: errors.New("timeout")}, store, store).RefreshBook(context.Background(), "b1")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, store.books)
}

func TestSyncer_RefreshAll(t *testing.T) {
	store := newMemoryStore()
	store.books["b1"] = entities.Book{ID: "b1"}
	store.books["b2"] = entities.Book{ID: "b2", Title: "Offline"}

	fetcher := &fakeFetcher{books: map[string]*remote.Book{
		"b1": {ID: "b1", Title: "Online", Chapters: []remote.Chapter{{ID: "c1"}, {ID: ""}}},
	}}
	reporter := &recordingReporter{}

	syncer := NewSyncer(fetcher, store, store)
	syncer.SetProgressReporter(reporter)

	result, err := syncer.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Books)
	assert.Equal(t, 1, result.BooksFailed)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Skipped)

	assert.Equal(t, 2, reporter.started)
	assert.Equal(t, 2, reporter.updates)
	assert.Equal(t, 1, reporter.skipped)
	assert.True(t, reporter.completed)
	assert.True(t, reporter.ok)
	assert.Equal(t, "Offline", store.books["b2"].Title)
}

func TestSyncer_RefreshAllAlreadyRunning(t *testing.T) {
	store := newMemoryStore()
	syncer := NewSyncer(&fakeFetcher{}, store, store)
	syncer.SetProgressReporter(&recordingReporter{running: true})

	_, err := syncer.RefreshAll(context.Background())
	assert.ErrorIs(t, err, ErrSyncRunning)
}

type recordingImages struct {
	books    []string
	chapters []string
}

func (r *recordingImages) InvalidateBook(id string) error {
	r.books = append(r.books, id)
	return nil
}

func (r *recordingImages) InvalidateChapter(id string) error {
	r.chapters = append(r.chapters, id)
	return nil
}

func TestSyncer_InvalidatesStaleImages(t *testing.T) {
	store := newMemoryStore()
	store.chapters["c1"] = entities.Chapter{ID: "c1", BookID: "b1", Images: []entities.ChapterImage{{URL: "https://img/old.png"}}}
	store.chapters["c2"] = entities.Chapter{ID: "c2", BookID: "b1", Images: []entities.ChapterImage{{URL: "https://img/same.png"}}}

	fetcher := &fakeFetcher{books: map[string]*remote.Book{
		"b1": {ID: "b1", CoverURL: "https://img/cover.png", Chapters: []remote.Chapter{
			{ID: "c1", Content: "x", Images: []remote.Image{{URL: "https://img/new.png"}}},
			{ID: "c2", Content: "y", Images: []remote.Image{{URL: "https://img/same.png"}}},
			{ID: "c3", Content: "z", Images: []remote.Image{{URL: "https://img/fresh.png"}}},
		}},
	}}
	images := &recordingImages{}

	syncer := NewSyncer(fetcher, store, store)
	syncer.SetImageInvalidator(images)

	_, err := syncer.RefreshBook(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, images.books)
	assert.Equal(t, []string{"c1"}, images.chapters)
}
