// Package scheduler refreshes the cached library from the story API on a
// cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/tasks"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// BookLister lists the IDs of every cached book.
type BookLister interface {
	ListBookIDs() ([]string, error)
}

// LibraryRefresher refreshes every cached book in place.
type LibraryRefresher interface {
	RefreshAll(ctx context.Context) (library.LibraryResult, error)
}

// StatusRecorder stores the outcome of the last run.
type StatusRecorder interface {
	SetSettings(values map[string]string) error
}

// LibraryRefreshScheduler refreshes every cached book on a schedule. With a
// task queue it enqueues one refresh_book task per book; without one it
// refreshes inline.
type LibraryRefreshScheduler struct {
	schedule string
	books    BookLister
	queue    tasks.Enqueuer
	syncer   LibraryRefresher
	status   StatusRecorder

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewLibraryRefreshScheduler(schedule string, books BookLister, syncer LibraryRefresher, status StatusRecorder) *LibraryRefreshScheduler {
	return &LibraryRefreshScheduler{
		schedule: schedule,
		books:    books,
		syncer:   syncer,
		status:   status,
		cron:     cron.New(cron.WithParser(parser)),
		ctx:      context.Background(),
	}
}

// SetQueue routes refreshes through the task queue.
func (s *LibraryRefreshScheduler) SetQueue(queue tasks.Enqueuer) {
	s.queue = queue
}

// Start schedules the refresh job. It stops when ctx is cancelled.
func (s *LibraryRefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runRefresh(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule library refresh: %w", err)
	}
	s.entryID = entryID
	s.ctx, s.cancel = runCtx, cancel

	s.cron.Start()
	s.isRunning = true

	next, _ := NextRunTime(s.schedule, time.Now())
	log.Printf("Library refresh scheduler: started with schedule '%s' (%s). Next run: %v",
		s.schedule, DescribeCronSchedule(s.schedule), next)

	go func(ctx context.Context) {
		<-ctx.Done()
		s.Stop()
	}(s.ctx)

	return nil
}

// Stop waits for a running refresh and stops the scheduler.
func (s *LibraryRefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cancel()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.cron.Remove(s.entryID)

	s.isRunning = false
	log.Printf("Library refresh scheduler: stopped")
}

// RunNow triggers an immediate refresh in the background.
func (s *LibraryRefreshScheduler) RunNow() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	go s.runRefresh(ctx)
}

func (s *LibraryRefreshScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next refresh will occur, or nil.
func (s *LibraryRefreshScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *LibraryRefreshScheduler) runRefresh(ctx context.Context) {
	start := time.Now()
	if s.queue != nil {
		s.enqueueAll(start)
		return
	}

	result, err := s.syncer.RefreshAll(ctx)
	if err != nil {
		s.record(start, StatusFailed, fmt.Sprintf("Library refresh failed: %v", err))
		return
	}
	s.record(start, StatusSuccess, fmt.Sprintf("Refreshed %d books (%d failed): %d chapters merged, %d skipped in %v",
		result.Books, result.BooksFailed, result.Merged, result.Skipped, time.Since(start).Round(time.Millisecond)))
}

func (s *LibraryRefreshScheduler) enqueueAll(start time.Time) {
	ids, err := s.books.ListBookIDs()
	if err != nil {
		s.record(start, StatusFailed, fmt.Sprintf("Failed to list books: %v", err))
		return
	}
	if len(ids) == 0 {
		s.record(start, StatusSuccess, "No books to refresh")
		return
	}

	batch := make([]backlite.Task, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, tasks.RefreshBookTask{BookID: id})
	}
	if _, err := s.queue.Enqueue(batch...); err != nil {
		s.record(start, StatusFailed, fmt.Sprintf("Failed to enqueue refreshes: %v", err))
		return
	}
	s.record(start, StatusSuccess, fmt.Sprintf("Queued refresh of %d books", len(batch)))
}

func (s *LibraryRefreshScheduler) record(at time.Time, status, message string) {
	log.Printf("Library refresh: %s", message)
	if s.status == nil {
		return
	}
	err := s.status.SetSettings(map[string]string{
		entities.SettingKeyLibraryRefreshLastAt:     at.UTC().Format(time.RFC3339),
		entities.SettingKeyLibraryRefreshLastStatus: status + ": " + message,
	})
	if err != nil {
		log.Printf("Library refresh: failed to record status: %v", err)
	}
}
