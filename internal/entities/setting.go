package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Reader preferences
	SettingKeyChapterSortAscending = "reader_chapter_sort_ascending"
	SettingKeyNarrationEnabled     = "reader_narration_enabled"
	SettingKeyNarrationWPM         = "reader_narration_wpm"

	// Library refresh settings
	SettingKeyLibraryRefreshLastAt     = "library_refresh_last_at"
	SettingKeyLibraryRefreshLastStatus = "library_refresh_last_status"
)
