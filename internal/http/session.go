package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storyreader/internal/reader"
	"github.com/mrlokans/storyreader/internal/session"
)

// SessionManager is the process-wide reader session owner.
type SessionManager interface {
	OpenSession(ctx context.Context, bookID, chapterID string) (*session.Session, bool, error)
	Close() error
	DetachSession() error
	AttachSession(s *session.Session) error
	Current() *session.Session
	Detached() *session.Session
	Subscribe() (<-chan *session.Session, func())
}

type SessionController struct {
	manager SessionManager
}

func NewSessionController(manager SessionManager) *SessionController {
	return &SessionController{manager: manager}
}

type OpenSessionRequest struct {
	BookID    string `json:"book_id" binding:"required"`
	ChapterID string `json:"chapter_id"`
}

type AttachSessionRequest struct {
	ID string `json:"id" binding:"required"`
}

type PositionRequest struct {
	ItemIndex    int `json:"item_index"`
	ScrollOffset int `json:"scroll_offset"`
}

type SessionResponse struct {
	Session                session.Snapshot  `json:"session"`
	Items                  []reader.ItemView `json:"items,omitempty"`
	ScrollToCurrentChapter bool              `json:"scroll_to_current_chapter"`
}

func sessionResponse(s *session.Session, withItems bool) SessionResponse {
	resp := SessionResponse{Session: s.Snapshot()}
	if withItems {
		resp.Items = reader.Views(s.Items())
	}
	return resp
}

// Open returns the live session for the book or replaces it with a new one.
func (sc *SessionController) Open(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	s, reused, err := sc.manager.OpenSession(c.Request.Context(), req.BookID, req.ChapterID)
	if err != nil {
		sc.respondSessionError(c, err, "open session")
		return
	}

	resp := sessionResponse(s, true)
	resp.ScrollToCurrentChapter = reused
	c.JSON(http.StatusOK, resp)
}

func (sc *SessionController) Get(c *gin.Context) {
	s := sc.current(c)
	if s == nil {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s, c.Query("items") == "true"))
}

func (sc *SessionController) Close(c *gin.Context) {
	if err := sc.manager.Close(); err != nil {
		sc.respondSessionError(c, err, "close session")
		return
	}
	respondSuccess(c, "Session closed")
}

// Detach hides the session from clients while narration keeps running.
func (sc *SessionController) Detach(c *gin.Context) {
	s := sc.current(c)
	if s == nil {
		return
	}
	if err := sc.manager.DetachSession(); err != nil {
		sc.respondSessionError(c, err, "detach session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": s.ID()})
}

func (sc *SessionController) Attach(c *gin.Context) {
	var req AttachSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	var target *session.Session
	for _, s := range []*session.Session{sc.manager.Detached(), sc.manager.Current()} {
		if s != nil && s.ID() == req.ID {
			target = s
			break
		}
	}
	if target == nil {
		respondNotFound(c, "session")
		return
	}

	if err := sc.manager.AttachSession(target); err != nil {
		sc.respondSessionError(c, err, "attach session")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(target, false))
}

func (sc *SessionController) NextChapter(c *gin.Context) {
	sc.navigate(c, (*session.Session).NextChapter)
}

func (sc *SessionController) PreviousChapter(c *gin.Context) {
	sc.navigate(c, (*session.Session).PreviousChapter)
}

func (sc *SessionController) navigate(c *gin.Context, step func(*session.Session, context.Context) error) {
	s := sc.current(c)
	if s == nil {
		return
	}
	if err := step(s, c.Request.Context()); err != nil {
		sc.respondSessionError(c, err, "change chapter")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s, true))
}

func (sc *SessionController) UpdatePosition(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid position: "+err.Error())
		return
	}
	s := sc.current(c)
	if s == nil {
		return
	}
	if err := s.UpdatePosition(req.ItemIndex, req.ScrollOffset); err != nil {
		sc.respondSessionError(c, err, "update position")
		return
	}
	respondAccepted(c, "Position recorded", s.Snapshot())
}

func (sc *SessionController) StartPlayback(c *gin.Context) {
	s := sc.current(c)
	if s == nil {
		return
	}
	if err := s.StartPlayback(); err != nil {
		sc.respondSessionError(c, err, "start playback")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s, false))
}

func (sc *SessionController) StopPlayback(c *gin.Context) {
	// a detached session may still be narrating
	s := sc.manager.Current()
	if s == nil {
		s = sc.manager.Detached()
	}
	if s == nil {
		respondNotFound(c, "session")
		return
	}
	if err := s.StopPlayback(); err != nil {
		sc.respondSessionError(c, err, "stop playback")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s, false))
}

// Events streams the current session as server-sent events. A "session"
// event carries a snapshot, or null when no session is published.
func (sc *SessionController) Events(c *gin.Context) {
	sessions, cancel := sc.manager.Subscribe()
	defer cancel()

	var updates <-chan session.Snapshot
	stopUpdates := func() {}
	defer func() { stopUpdates() }()

	c.Stream(func(w io.Writer) bool {
		select {
		case s, ok := <-sessions:
			if !ok {
				return false
			}
			stopUpdates()
			updates, stopUpdates = nil, func() {}
			if s == nil {
				c.SSEvent("session", gin.H{"session": nil})
				return true
			}
			updates, stopUpdates = s.Updates()
			return true
		case snap, ok := <-updates:
			if !ok {
				updates = nil
				return true
			}
			c.SSEvent("session", gin.H{"session": snap})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (sc *SessionController) current(c *gin.Context) *session.Session {
	s := sc.manager.Current()
	if s == nil {
		respondNotFound(c, "session")
	}
	return s
}

func (sc *SessionController) respondSessionError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, session.ErrChapterNotFound):
		respondError(c, http.StatusNotFound, "chapter_not_found", err.Error())
	case errors.Is(err, session.ErrNoMoreChapters):
		respondError(c, http.StatusConflict, "no_more_chapters", err.Error())
	case errors.Is(err, session.ErrNarrationDisabled):
		respondError(c, http.StatusConflict, "narration_disabled", err.Error())
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, session.ErrNotInitialized):
		respondError(c, http.StatusConflict, "session_closed", err.Error())
	case errors.Is(err, session.ErrManagerStopped):
		respondError(c, http.StatusServiceUnavailable, "shutting_down", err.Error())
	default:
		respondInternalError(c, err, action)
	}
}
