package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mrlokans/storyreader/internal/stream"
)

var (
	ErrManagerStopped = errors.New("session manager stopped")
	ErrNilSession     = errors.New("nil session")
)

// Factory builds an uninitialised session.
type Factory func(bookID, chapterID string) *Session

// Manager owns the process-wide current session. Every operation runs on a
// single goroutine, so at most one session is ever live: a session is either
// current, detached (still running, not published) or closed.
type Manager struct {
	newSession Factory
	sessions   *stream.Latest[*Session]

	ops      chan func()
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once

	// owned by the loop goroutine
	current         *Session
	detached        *Session
	scrollToCurrent bool
}

func NewManager(factory Factory) *Manager {
	m := &Manager{
		newSession: factory,
		sessions:   stream.NewLatest[*Session](nil),
		ops:        make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case op := <-m.ops:
			op()
		case <-m.quit:
			m.closeLive()
			m.sessions.Close()
			return
		}
	}
}

// do runs fn on the manager goroutine and waits for it to finish.
func (m *Manager) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case m.ops <- func() {
		defer close(finished)
		fn()
	}:
	case <-m.done:
		return ErrManagerStopped
	}
	<-finished
	return nil
}

// InitiateOrGetSession returns the live session when it shows the same book
// and either no chapter was requested or the requested chapter is already
// open; the scroll-to-current flag is raised in that case. Otherwise the
// live session is closed and a new one is created, published and
// initialised.
func (m *Manager) InitiateOrGetSession(ctx context.Context, bookID, chapterID string) (*Session, error) {
	s, _, err := m.initiate(ctx, bookID, chapterID, false)
	return s, err
}

// OpenSession is InitiateOrGetSession with the scroll-to-current flag
// consumed in the same step. It reports whether the live session was reused.
func (m *Manager) OpenSession(ctx context.Context, bookID, chapterID string) (*Session, bool, error) {
	return m.initiate(ctx, bookID, chapterID, true)
}

// initiate swaps sessions on the manager goroutine and opens the chosen one
// outside it, so a slow chapter fetch never stalls other calls and Close can
// cancel it.
func (m *Manager) initiate(ctx context.Context, bookID, chapterID string, consume bool) (*Session, bool, error) {
	var (
		target *Session
		reused bool
	)

	err := m.do(func() {
		if live := m.live(); live != nil && reusable(live, bookID, chapterID) {
			if live != m.current {
				m.current, m.detached = live, nil
				m.sessions.Publish(live)
			}
			m.scrollToCurrent = !consume
			target, reused = live, true
			return
		}

		m.closeLive()
		m.scrollToCurrent = false

		target = m.newSession(bookID, chapterID)
		m.current = target
		m.sessions.Publish(target)
	})
	if err != nil {
		return nil, false, err
	}

	// a reused session may still be opening; open waits for it
	if err := target.open(ctx); err != nil {
		if !reused {
			log.Printf("[SESSION] Failed to open book %s chapter %q: %v", bookID, chapterID, err)
			m.discard(target)
		}
		return nil, false, err
	}
	return target, reused, nil
}

// discard unpublishes s if it is still live and closes it.
func (m *Manager) discard(s *Session) {
	_ = m.do(func() {
		if m.current == s {
			m.current = nil
			m.sessions.Publish(nil)
		}
		if m.detached == s {
			m.detached = nil
		}
	})
	m.closeQuietly(s)
}

// Close closes the live session, if any, and publishes nil.
func (m *Manager) Close() error {
	return m.do(func() {
		m.closeLive()
		m.scrollToCurrent = false
		m.sessions.Publish(nil)
	})
}

// DetachSession unpublishes the current session without closing it, so
// playback keeps running while nothing shows it.
func (m *Manager) DetachSession() error {
	return m.do(func() {
		if m.current == nil {
			return
		}
		m.detached, m.current = m.current, nil
		m.sessions.Publish(nil)
	})
}

// AttachSession publishes s as current, closing any other live session
// first.
func (m *Manager) AttachSession(s *Session) error {
	if s == nil {
		return ErrNilSession
	}

	var attachErr error
	err := m.do(func() {
		if s.State() == StateClosed {
			attachErr = fmt.Errorf("attach %s: %w", s.ID(), ErrSessionClosed)
			return
		}
		if live := m.live(); live != nil && live != s {
			m.closeQuietly(live)
		}
		m.current, m.detached = s, nil
		m.sessions.Publish(s)
	})
	if err != nil {
		return err
	}
	return attachErr
}

// Current returns the published session, or nil.
func (m *Manager) Current() *Session {
	var s *Session
	_ = m.do(func() { s = m.current })
	return s
}

// Detached returns the session that was detached and is still running, or
// nil.
func (m *Manager) Detached() *Session {
	var s *Session
	_ = m.do(func() { s = m.detached })
	return s
}

// Subscribe streams the current session, starting with the present value.
// nil means no session.
func (m *Manager) Subscribe() (<-chan *Session, func()) {
	return m.sessions.Subscribe()
}

// ConsumeScrollToCurrentChapter reports whether the last open request reused
// the live session, and lowers the flag.
func (m *Manager) ConsumeScrollToCurrentChapter() bool {
	var flag bool
	_ = m.do(func() {
		flag = m.scrollToCurrent
		m.scrollToCurrent = false
	})
	return flag
}

// Shutdown closes the live session and stops the manager. Later calls to
// other methods return ErrManagerStopped or zero values.
func (m *Manager) Shutdown() {
	m.quitOnce.Do(func() { close(m.quit) })
	<-m.done
}

func (m *Manager) live() *Session {
	if m.current != nil {
		return m.current
	}
	return m.detached
}

func (m *Manager) closeLive() {
	if m.current != nil {
		m.closeQuietly(m.current)
	}
	if m.detached != nil && m.detached != m.current {
		m.closeQuietly(m.detached)
	}
	m.current, m.detached = nil, nil
}

// closeQuietly closes s, logging rather than returning teardown failures so
// a broken session never blocks its replacement.
func (m *Manager) closeQuietly(s *Session) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SESSION] Panic while closing session %s: %v", s.ID(), r)
		}
	}()
	if err := s.Close(); err != nil {
		log.Printf("[SESSION] Failed to close session %s cleanly: %v", s.ID(), err)
	}
}

func reusable(s *Session, bookID, chapterID string) bool {
	if s.State() == StateClosed || s.BookID() != bookID {
		return false
	}
	return chapterID == "" || chapterID == s.ChapterID()
}
