// Package preferences exposes reader preferences as a read/write store with
// a change stream that open reader sessions subscribe to.
package preferences

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/stream"
)

const (
	MinNarrationWPM = 60
	MaxNarrationWPM = 600
)

var ErrInvalidPreferences = errors.New("invalid preferences")

type Preferences struct {
	ChapterSortAscending bool `json:"chapter_sort_ascending"`
	NarrationEnabled     bool `json:"narration_enabled"`
	NarrationWPM         int  `json:"narration_wpm"`
}

func (p Preferences) Validate() error {
	if p.NarrationWPM < MinNarrationWPM || p.NarrationWPM > MaxNarrationWPM {
		return fmt.Errorf("%w: narration_wpm must be between %d and %d", ErrInvalidPreferences, MinNarrationWPM, MaxNarrationWPM)
	}
	return nil
}

// SettingsBackend persists preferences as key/value settings.
type SettingsBackend interface {
	GetSettings(keys ...string) (map[string]string, error)
	SetSettings(values map[string]string) error
}

// Store resolves preferences with priority: database > configured defaults.
type Store struct {
	backend  SettingsBackend
	defaults Preferences
	changes  *stream.Latest[Preferences]
}

func NewStore(backend SettingsBackend, defaults Preferences) (*Store, error) {
	s := &Store{backend: backend, defaults: defaults}
	current, err := s.load()
	if err != nil {
		return nil, err
	}
	s.changes = stream.NewLatest(current)
	return s, nil
}

// Get returns the current preferences.
func (s *Store) Get() Preferences {
	return s.changes.Value()
}

// Update validates, persists and publishes new preferences.
func (s *Store) Update(p Preferences) (Preferences, error) {
	if err := p.Validate(); err != nil {
		return s.Get(), err
	}

	err := s.backend.SetSettings(map[string]string{
		entities.SettingKeyChapterSortAscending: strconv.FormatBool(p.ChapterSortAscending),
		entities.SettingKeyNarrationEnabled:     strconv.FormatBool(p.NarrationEnabled),
		entities.SettingKeyNarrationWPM:         strconv.Itoa(p.NarrationWPM),
	})
	if err != nil {
		return s.Get(), fmt.Errorf("save preferences: %w", err)
	}

	s.changes.Publish(p)
	return p, nil
}

// Subscribe streams preferences, starting with the current value.
func (s *Store) Subscribe() (<-chan Preferences, func()) {
	return s.changes.Subscribe()
}

// Close ends every subscription.
func (s *Store) Close() {
	s.changes.Close()
}

func (s *Store) load() (Preferences, error) {
	values, err := s.backend.GetSettings(
		entities.SettingKeyChapterSortAscending,
		entities.SettingKeyNarrationEnabled,
		entities.SettingKeyNarrationWPM,
	)
	if err != nil {
		return s.defaults, fmt.Errorf("load preferences: %w", err)
	}

	p := s.defaults
	if v, ok := values[entities.SettingKeyChapterSortAscending]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.ChapterSortAscending = b
		}
	}
	if v, ok := values[entities.SettingKeyNarrationEnabled]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.NarrationEnabled = b
		}
	}
	if v, ok := values[entities.SettingKeyNarrationWPM]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= MinNarrationWPM && n <= MaxNarrationWPM {
			p.NarrationWPM = n
		}
	}
	return p, nil
}
