// Package progress turns scroll positions reported by readers into stored
// chapter and book progress.
package progress

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/storyreader/internal/entities"
)

// Position is one scroll position report. ItemIndex and TotalItems count
// reader items of the segmented chapter.
type Position struct {
	BookID       string `json:"book_id"`
	ChapterID    string `json:"chapter_id" binding:"required"`
	ItemIndex    int    `json:"item_index"`
	ScrollOffset int    `json:"scroll_offset"`
	TotalItems   int    `json:"total_items"`
}

// Store persists per-chapter positions.
type Store interface {
	SaveProgress(p *entities.ReadingProgress) error
	LatestForBook(bookID string) (*entities.ReadingProgress, error)
}

// ReadStateWriter updates the read state kept on chapter rows.
type ReadStateWriter interface {
	UpdateReadState(chapterID string, position, offset int, progress float64, isRead bool) error
	ListChapters(bookID string) ([]entities.Chapter, error)
}

// ChapterProgress is itemIndex/totalItems clamped to [0,1], 0 for an empty
// chapter.
func ChapterProgress(itemIndex, totalItems int) float64 {
	if totalItems <= 0 {
		return 0
	}
	return clamp(float64(itemIndex) / float64(totalItems))
}

// BookProgress counts every read chapter other than the current one as
// complete and adds the current chapter's progress as partial credit.
func BookProgress(chapters []entities.Chapter, currentChapterID string, current float64) float64 {
	if len(chapters) == 0 {
		return clamp(current)
	}

	done := 0.0
	for _, ch := range chapters {
		if ch.ID == currentChapterID {
			continue
		}
		if ch.IsRead {
			done++
		}
	}
	return clamp((done + clamp(current)) / float64(len(chapters)))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type pendingWrite struct {
	pos Position
	seq uint64
	at  time.Time
}

// Tracker records positions asynchronously. Reports for the same chapter are
// coalesced and a single writer goroutine applies them in report order, so
// the latest position always wins.
type Tracker struct {
	store    Store
	chapters ReadStateWriter
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]pendingWrite
	seq     uint64
	written uint64
	notify  chan struct{}
	closed  bool

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewTracker(store Store, chapters ReadStateWriter) *Tracker {
	t := &Tracker{
		store:    store,
		chapters: chapters,
		now:      time.Now,
		pending:  make(map[string]pendingWrite),
		notify:   make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

// Report queues a position. It never blocks and never fails; reports without
// a chapter or after Close are dropped.
func (t *Tracker) Report(pos Position) {
	if pos.ChapterID == "" {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.seq++
	t.pending[pos.ChapterID] = pendingWrite{pos: pos, seq: t.seq, at: t.now()}
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Flush waits until every position reported before the call is written.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	target := t.seq
	t.mu.Unlock()

	for {
		t.mu.Lock()
		if t.written >= target {
			t.mu.Unlock()
			return nil
		}
		notify := t.notify
		t.mu.Unlock()

		select {
		case <-notify:
		case <-t.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Resume returns the most recently stored position in a book, or nil.
func (t *Tracker) Resume(bookID string) (*entities.ReadingProgress, error) {
	return t.store.LatestForBook(bookID)
}

// Close writes what is pending and stops the writer. Safe to call repeatedly.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.stop)
	})
	<-t.done
}

func (t *Tracker) run() {
	defer close(t.done)
	for {
		select {
		case <-t.wake:
			t.drain()
		case <-t.stop:
			t.drain()
			return
		}
	}
}

func (t *Tracker) drain() {
	t.mu.Lock()
	batch := make([]pendingWrite, 0, len(t.pending))
	for _, w := range t.pending {
		batch = append(batch, w)
	}
	t.pending = make(map[string]pendingWrite)
	t.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].seq < batch[j].seq })

	var last uint64
	for _, w := range batch {
		t.write(w)
		last = w.seq
	}

	t.mu.Lock()
	if last > t.written {
		t.written = last
	}
	close(t.notify)
	t.notify = make(chan struct{})
	t.mu.Unlock()
}

func (t *Tracker) write(w pendingWrite) {
	pos := w.pos
	chapterProgress := ChapterProgress(pos.ItemIndex, pos.TotalItems)
	reachedEnd := pos.TotalItems > 0 && pos.ItemIndex+1 >= pos.TotalItems

	isRead := reachedEnd
	bookProgress := chapterProgress
	if pos.BookID != "" {
		chapters, err := t.chapters.ListChapters(pos.BookID)
		if err != nil {
			log.Printf("[PROGRESS] Failed to list chapters of book %s: %v", pos.BookID, err)
		}
		for _, ch := range chapters {
			if ch.ID == pos.ChapterID && ch.IsRead {
				isRead = true
			}
		}
		current := chapterProgress
		if isRead {
			current = 1
		}
		bookProgress = BookProgress(chapters, pos.ChapterID, current)
	}

	record := &entities.ReadingProgress{
		BookID:          pos.BookID,
		ChapterID:       pos.ChapterID,
		ItemIndex:       pos.ItemIndex,
		ScrollOffset:    pos.ScrollOffset,
		TotalItems:      pos.TotalItems,
		ChapterProgress: chapterProgress,
		BookProgress:    bookProgress,
		LastReadAt:      w.at,
	}
	if err := t.store.SaveProgress(record); err != nil {
		log.Printf("[PROGRESS] Failed to save position for chapter %s: %v", pos.ChapterID, err)
	}
	if err := t.chapters.UpdateReadState(pos.ChapterID, pos.ItemIndex, pos.ScrollOffset, chapterProgress, isRead); err != nil {
		log.Printf("[PROGRESS] Failed to update read state for chapter %s: %v", pos.ChapterID, err)
	}
}
