package session

import (
	"context"
	"errors"
	"sync"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/preferences"
	"github.com/mrlokans/storyreader/internal/progress"
	"github.com/mrlokans/storyreader/internal/reader"
	"github.com/mrlokans/storyreader/internal/stream"
)

type fakeChapters struct {
	mu       sync.Mutex
	chapters map[string]entities.Chapter
}

func newFakeChapters(chapters ...entities.Chapter) *fakeChapters {
	f := &fakeChapters{chapters: map[string]entities.Chapter{}}
	for _, ch := range chapters {
		f.chapters[ch.ID] = ch
	}
	return f
}

func (f *fakeChapters) FindChapter(id string) (*entities.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.chapters[id]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (f *fakeChapters) ListChapters(bookID string) ([]entities.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Chapter
	for _, ch := range f.chapters {
		if ch.BookID == bookID {
			out = append(out, ch)
		}
	}
	return out, nil
}

type fakeRefresher struct {
	mu       sync.Mutex
	chapters map[string]entities.Chapter
	err      error
	calls    []string
	block    bool
}

func (f *fakeRefresher) RefreshChapter(ctx context.Context, id string) (*entities.Chapter, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	block, err := f.block, f.err
	ch, ok := f.chapters[id]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("not found upstream")
	}
	return &ch, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// gatedRefresher holds every fetch until release is closed or the fetch
// context ends.
type gatedRefresher struct {
	chapter   entities.Chapter
	started   chan struct{}
	release   chan struct{}
	cancelled chan error
	once      sync.Once
}

func newGatedRefresher(chapter entities.Chapter) *gatedRefresher {
	return &gatedRefresher{
		chapter:   chapter,
		started:   make(chan struct{}),
		release:   make(chan struct{}),
		cancelled: make(chan error, 1),
	}
}

func (g *gatedRefresher) RefreshChapter(ctx context.Context, _ string) (*entities.Chapter, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		ch := g.chapter
		return &ch, nil
	case <-ctx.Done():
		select {
		case g.cancelled <- ctx.Err():
		default:
		}
		return nil, ctx.Err()
	}
}

type fakeTracker struct {
	mu      sync.Mutex
	reports []progress.Position
	last    *entities.ReadingProgress
}

func (f *fakeTracker) Report(pos progress.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, pos)
}

func (f *fakeTracker) Resume(string) (*entities.ReadingProgress, error) {
	return f.last, nil
}

func (f *fakeTracker) lastReport() (progress.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reports) == 0 {
		return progress.Position{}, false
	}
	return f.reports[len(f.reports)-1], true
}

type fakePreferences struct {
	*stream.Latest[preferences.Preferences]
}

func newFakePreferences(p preferences.Preferences) *fakePreferences {
	return &fakePreferences{stream.NewLatest(p)}
}

func (f *fakePreferences) Get() preferences.Preferences { return f.Value() }

// stepNarrator announces every item immediately.
type stepNarrator struct{}

func (stepNarrator) Play(ctx context.Context, items []reader.ReaderItem, start int, _ func() int, onItem func(int)) error {
	for i := start; i < len(items); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		onItem(i)
	}
	return nil
}

// holdNarrator announces the start item and waits to be stopped.
type holdNarrator struct {
	started chan struct{}
}

func (n holdNarrator) Play(ctx context.Context, _ []reader.ReaderItem, start int, _ func() int, onItem func(int)) error {
	onItem(start)
	close(n.started)
	<-ctx.Done()
	return ctx.Err()
}

var defaultPrefs = preferences.Preferences{ChapterSortAscending: true, NarrationEnabled: true, NarrationWPM: 180}

func bookChapters() []entities.Chapter {
	return []entities.Chapter{
		{ID: "ch1", BookID: "bookA", Title: "One", Order: 1, Content: "Para one.\n\nPara two."},
		{ID: "ch2", BookID: "bookA", Title: "Two", Order: 2, Content: "Second chapter."},
		{ID: "ch3", BookID: "bookA", Title: "Three", Order: 3, Content: "Third chapter."},
		{ID: "x1", BookID: "bookB", Title: "Other", Order: 1, Content: "Another book."},
	}
}
