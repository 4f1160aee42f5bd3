// Package session owns the live reading context: the open book and chapter,
// its segmented items, the reader's position and narration playback.
//
// A Session moves through Created, Initialized and Closed. The Manager makes
// sure at most one Session is live in the process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/preferences"
	"github.com/mrlokans/storyreader/internal/progress"
	"github.com/mrlokans/storyreader/internal/reader"
	"github.com/mrlokans/storyreader/internal/stream"
)

var (
	ErrSessionClosed     = errors.New("session is closed")
	ErrNotInitialized    = errors.New("session is not initialized")
	ErrChapterNotFound   = errors.New("chapter not found")
	ErrNoMoreChapters    = errors.New("no more chapters")
	ErrNarrationDisabled = errors.New("narration is disabled")
)

type State int

const (
	StateCreated State = iota
	StateInitialized
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ChapterSource reads chapters from the local store.
type ChapterSource interface {
	FindChapter(id string) (*entities.Chapter, error)
	ListChapters(bookID string) ([]entities.Chapter, error)
}

// Refresher fetches a chapter from the story API and merges it locally.
type Refresher interface {
	RefreshChapter(ctx context.Context, chapterID string) (*entities.Chapter, error)
}

// PositionTracker records and restores reading positions.
type PositionTracker interface {
	Report(pos progress.Position)
	Resume(bookID string) (*entities.ReadingProgress, error)
}

// PreferenceSource provides the current preferences and their changes.
type PreferenceSource interface {
	Get() preferences.Preferences
	Subscribe() (<-chan preferences.Preferences, func())
}

// Deps are the collaborators of a Session. Only Chapters is required.
type Deps struct {
	Chapters    ChapterSource
	Refresher   Refresher
	Positions   PositionTracker
	Preferences PreferenceSource
	Narrator    Narrator
	Defaults    preferences.Preferences
}

// Snapshot is a point-in-time view of a session for clients.
type Snapshot struct {
	ID           string                  `json:"id"`
	BookID       string                  `json:"book_id"`
	ChapterID    string                  `json:"chapter_id"`
	ChapterTitle string                  `json:"chapter_title"`
	State        string                  `json:"state"`
	ItemIndex    int                     `json:"item_index"`
	TotalItems   int                     `json:"total_items"`
	Playing      bool                    `json:"playing"`
	Preferences  preferences.Preferences `json:"preferences"`
}

type Session struct {
	id     string
	bookID string
	deps   Deps

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	updates *stream.Latest[Snapshot]

	mu          sync.Mutex
	state       State
	initStarted bool
	initDone    chan struct{}
	initErr     error
	requested   string
	chapter     *entities.Chapter
	chapters    []entities.Chapter // reading order
	items       []reader.ReaderItem
	position    int
	prefs       preferences.Preferences
	playing     bool
	playGen     int
	stopPlay    context.CancelFunc
	unsubscribe func()
	onClose     []func() error
}

// New creates a session for a book. chapterID may be empty, in which case
// Init resumes the last read chapter or opens the first one.
func New(bookID, chapterID string, deps Deps) *Session {
	if deps.Narrator == nil {
		deps.Narrator = NewPacedNarrator()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		bookID:    bookID,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		initDone:  make(chan struct{}),
		requested: chapterID,
		prefs:     deps.Defaults,
	}
	s.updates = stream.NewLatest(s.snapshotLocked())
	return s
}

// NewFactory returns a Factory building sessions with deps.
func NewFactory(deps Deps) Factory {
	return func(bookID, chapterID string) *Session {
		return New(bookID, chapterID, deps)
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) BookID() string { return s.bookID }

// ChapterID returns the open chapter, or the requested one before Init.
func (s *Session) ChapterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chapter != nil {
		return s.chapter.ID
	}
	return s.requested
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once a closed session's background work has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// OnClose registers fn to run when the session closes.
func (s *Session) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Init loads the chapter, segments it and subscribes to preference changes.
// The first call does the work; concurrent and later calls wait for its
// result. Calling Init on a closed session panics.
func (s *Session) Init(ctx context.Context) error {
	if s.State() == StateClosed {
		panic("session: Init called on a closed session")
	}
	return s.open(ctx)
}

// open is Init for callers that may race with Close. No lock is held while
// the chapter is fetched, and Close cancels the fetch.
func (s *Session) open(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.initStarted {
		s.mu.Unlock()
		select {
		case <-s.initDone:
			return s.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.initStarted = true
	requested := s.requested
	s.mu.Unlock()

	err := s.initialize(ctx, requested)
	s.initErr = err
	close(s.initDone)
	return err
}

func (s *Session) initialize(ctx context.Context, requested string) error {
	prefs := s.deps.Defaults
	if s.deps.Preferences != nil {
		prefs = s.deps.Preferences.Get()
	}

	listed, err := s.deps.Chapters.ListChapters(s.bookID)
	if err != nil {
		return fmt.Errorf("list chapters of %s: %w", s.bookID, err)
	}
	chapters := sortByOrder(listed)

	chapterID := s.resolveChapter(requested, chapters, prefs.ChapterSortAscending)
	if chapterID == "" {
		return fmt.Errorf("%w: book %s has no chapters", ErrChapterNotFound, s.bookID)
	}

	fetchCtx, stop := s.fetchContext(ctx)
	chapter, err := s.loadChapter(fetchCtx, chapterID)
	stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return fmt.Errorf("open chapter %s: %w", chapterID, ErrSessionClosed)
	}
	if err != nil {
		return err
	}

	s.prefs = prefs
	s.chapters = chapters
	s.showLocked(chapter, true)

	if s.deps.Preferences != nil {
		changes, unsubscribe := s.deps.Preferences.Subscribe()
		s.unsubscribe = unsubscribe
		s.wg.Add(1)
		go s.watchPreferences(changes)
	}

	s.state = StateInitialized
	s.refreshInBackground(chapter.ID)
	s.publishLocked()

	log.Printf("[SESSION] %s: opened book %s at chapter %s", s.id, s.bookID, chapter.ID)
	return nil
}

// Close cancels in-flight work, releases the preference subscription and
// runs close hooks. It does not wait for goroutines to exit; see Done.
// Calls after the first return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.playing = false
	s.cancel()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	hooks := s.onClose
	s.onClose = nil
	s.publishLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.updates.Close()

	go func() {
		s.wg.Wait()
		close(s.done)
	}()

	var errs []error
	for _, hook := range hooks {
		if err := hook(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Updates streams snapshots, starting with the current one. The stream ends
// when the session closes.
func (s *Session) Updates() (<-chan Snapshot, func()) {
	return s.updates.Subscribe()
}

// Items returns the reader items of the open chapter.
func (s *Session) Items() []reader.ReaderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reader.ReaderItem(nil), s.items...)
}

// Chapters lists the book's chapters in the preferred display order.
func (s *Session) Chapters() []entities.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return displayOrder(s.chapters, s.prefs.ChapterSortAscending)
}

// OpenChapter switches the session to another chapter of the same book.
func (s *Session) OpenChapter(ctx context.Context, chapterID string) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.chapter != nil && s.chapter.ID == chapterID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	fetchCtx, stop := s.fetchContext(ctx)
	chapter, loadErr := s.loadChapter(fetchCtx, chapterID)
	stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if loadErr != nil {
		return loadErr
	}
	s.stopPlaybackLocked()
	s.showLocked(chapter, true)
	s.refreshInBackground(chapter.ID)
	s.publishLocked()
	return nil
}

// NextChapter opens the chapter after the current one in reading order.
func (s *Session) NextChapter(ctx context.Context) error {
	return s.step(ctx, 1)
}

// PreviousChapter opens the chapter before the current one in reading order.
func (s *Session) PreviousChapter(ctx context.Context) error {
	return s.step(ctx, -1)
}

func (s *Session) step(ctx context.Context, delta int) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := -1
	for i, ch := range s.chapters {
		if ch.ID == s.chapter.ID {
			idx = i
			break
		}
	}
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(s.chapters) {
		s.mu.Unlock()
		return ErrNoMoreChapters
	}
	target := s.chapters[next].ID
	s.mu.Unlock()

	return s.OpenChapter(ctx, target)
}

// UpdatePosition records the item the reader scrolled to.
func (s *Session) UpdatePosition(itemIndex, scrollOffset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	s.position = clampIndex(itemIndex, len(s.items))
	s.reportLocked(scrollOffset)
	s.publishLocked()
	return nil
}

// StartPlayback narrates from the current position. Starting while already
// playing is a no-op.
func (s *Session) StartPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if !s.prefs.NarrationEnabled {
		return ErrNarrationDisabled
	}
	if s.playing {
		return nil
	}

	ctx, stop := context.WithCancel(s.ctx)
	s.playGen++
	gen := s.playGen
	s.playing = true
	s.stopPlay = stop
	items := append([]reader.ReaderItem(nil), s.items...)
	start := s.position

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()

		err := s.deps.Narrator.Play(ctx, items, start, s.narrationWPM, func(index int) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.playGen != gen || s.state == StateClosed {
				return
			}
			s.position = index
			s.reportLocked(0)
			s.publishLocked()
		})

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.playGen == gen {
			s.playing = false
			s.stopPlay = nil
			if s.state != StateClosed {
				s.publishLocked()
			}
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[SESSION] %s: narration stopped: %v", s.id, err)
		}
	}()

	s.publishLocked()
	return nil
}

// StopPlayback stops narration. Stopping when idle is a no-op.
func (s *Session) StopPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.stopPlaybackLocked() {
		s.publishLocked()
	}
	return nil
}

func (s *Session) stopPlaybackLocked() bool {
	if !s.playing {
		return false
	}
	s.playGen++
	s.playing = false
	if s.stopPlay != nil {
		s.stopPlay()
		s.stopPlay = nil
	}
	return true
}

func (s *Session) narrationWPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.NarrationWPM
}

func (s *Session) usableLocked() error {
	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateCreated:
		return ErrNotInitialized
	}
	return nil
}

// resolveChapter picks the explicit chapter, else the last read one, else
// the first in display order.
func (s *Session) resolveChapter(requested string, chapters []entities.Chapter, ascending bool) string {
	if requested != "" {
		return requested
	}
	if s.deps.Positions != nil {
		last, err := s.deps.Positions.Resume(s.bookID)
		if err != nil {
			log.Printf("[SESSION] %s: failed to resume book %s: %v", s.id, s.bookID, err)
		} else if last != nil && last.ChapterID != "" {
			return last.ChapterID
		}
	}
	ordered := displayOrder(chapters, ascending)
	if len(ordered) == 0 {
		return ""
	}
	return ordered[0].ID
}

// fetchContext ends when either ctx or the session does.
func (s *Session) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	fetchCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return fetchCtx, func() {
		stop()
		cancel()
	}
}

// loadChapter reads a chapter from the store, fetching it first when it has
// never been cached.
func (s *Session) loadChapter(ctx context.Context, chapterID string) (*entities.Chapter, error) {
	chapter, err := s.deps.Chapters.FindChapter(chapterID)
	if err != nil {
		return nil, fmt.Errorf("load chapter %s: %w", chapterID, err)
	}
	if chapter != nil {
		return chapter, nil
	}
	if s.deps.Refresher == nil {
		return nil, fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
	}

	fetched, err := s.deps.Refresher.RefreshChapter(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrChapterNotFound, chapterID, err)
	}
	return fetched, nil
}

func (s *Session) showLocked(chapter *entities.Chapter, restorePosition bool) {
	s.chapter = chapter
	s.requested = chapter.ID
	s.items = reader.Segment(*chapter)
	s.position = 0
	if restorePosition {
		s.position = clampIndex(chapter.LastReadPosition, len(s.items))
	}
	if i := indexOf(s.chapters, chapter.ID); i >= 0 {
		s.chapters[i] = *chapter
	}
}

// refreshInBackground fetches the chapter from the story API. Failures keep
// the cached content on screen.
func (s *Session) refreshInBackground(chapterID string) {
	if s.deps.Refresher == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		fresh, err := s.deps.Refresher.RefreshChapter(s.ctx, chapterID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("[SESSION] %s: background refresh of chapter %s failed: %v", s.id, chapterID, err)
			}
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateInitialized || s.chapter == nil || s.chapter.ID != chapterID {
			return
		}
		if fresh.Content == s.chapter.Content && fresh.Title == s.chapter.Title && len(fresh.Images) == len(s.chapter.Images) {
			return
		}

		position := s.position
		s.stopPlaybackLocked()
		s.showLocked(fresh, false)
		s.position = clampIndex(position, len(s.items))
		s.publishLocked()
	}()
}

func (s *Session) watchPreferences(changes <-chan preferences.Preferences) {
	defer s.wg.Done()
	for {
		select {
		case prefs, ok := <-changes:
			if !ok {
				return
			}
			s.mu.Lock()
			if s.state == StateClosed {
				s.mu.Unlock()
				return
			}
			s.prefs = prefs
			if !prefs.NarrationEnabled {
				s.stopPlaybackLocked()
			}
			s.publishLocked()
			s.mu.Unlock()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) reportLocked(scrollOffset int) {
	if s.deps.Positions == nil || s.chapter == nil {
		return
	}
	s.deps.Positions.Report(progress.Position{
		BookID:       s.bookID,
		ChapterID:    s.chapter.ID,
		ItemIndex:    s.position,
		ScrollOffset: scrollOffset,
		TotalItems:   len(s.items),
	})
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		BookID:      s.bookID,
		ChapterID:   s.requested,
		State:       s.state.String(),
		ItemIndex:   s.position,
		TotalItems:  len(s.items),
		Playing:     s.playing,
		Preferences: s.prefs,
	}
	if s.chapter != nil {
		snap.ChapterID = s.chapter.ID
		snap.ChapterTitle = s.chapter.Title
	}
	return snap
}

func (s *Session) publishLocked() {
	s.updates.Publish(s.snapshotLocked())
}

func sortByOrder(chapters []entities.Chapter) []entities.Chapter {
	out := append([]entities.Chapter(nil), chapters...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func displayOrder(chapters []entities.Chapter, ascending bool) []entities.Chapter {
	out := append([]entities.Chapter(nil), chapters...)
	if !ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func indexOf(chapters []entities.Chapter, id string) int {
	for i, ch := range chapters {
		if ch.ID == id {
			return i
		}
	}
	return -1
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
