package entities

import (
	"time"
)

// Book is the locally cached copy of a story as served by the story API.
type Book struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Title        string    `gorm:"index;size:512" json:"title"`
	Author       string    `gorm:"index;size:256" json:"author"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	CoverURL     string    `gorm:"size:2048" json:"cover_url,omitempty"`
	Narrator     string    `gorm:"size:256" json:"narrator,omitempty"`
	ChapterCount int       `json:"chapter_count"`
	Chapters     []Chapter `gorm:"foreignKey:BookID" json:"chapters,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChapterImage is an illustration attached to a chapter.
type ChapterImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type Chapter struct {
	ID      string         `gorm:"primaryKey;size:64" json:"id"`
	BookID  string         `gorm:"index;size:64" json:"book_id"`
	Title   string         `gorm:"size:512" json:"title"`
	Content string         `gorm:"type:text" json:"content"`
	Order   int            `gorm:"column:chapter_order;index" json:"order"`
	Images  []ChapterImage `gorm:"serializer:json" json:"images,omitempty"`

	// Read state. Owned by the device, never taken from the server.
	IsRead           bool    `json:"is_read"`
	ReadProgress     float64 `json:"read_progress"` // 0.0-1.0
	LastReadPosition int     `json:"last_read_position"`
	LastReadOffset   int     `json:"last_read_offset"`

	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

func (Chapter) TableName() string {
	return "chapters"
}

// ReadingProgress is the last reported position inside one chapter.
// ItemIndex and TotalItems are expressed in reader items, so they are only
// meaningful for the segmentation that produced them.
type ReadingProgress struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BookID          string    `gorm:"index;size:64" json:"book_id"`
	ChapterID       string    `gorm:"uniqueIndex;size:64" json:"chapter_id"`
	ItemIndex       int       `json:"item_index"`
	ScrollOffset    int       `json:"scroll_offset"`
	TotalItems      int       `json:"total_items"`
	ChapterProgress float64   `json:"chapter_progress"`
	BookProgress    float64   `json:"book_progress"`
	LastReadAt      time.Time `gorm:"index" json:"last_read_at"`
}

func (ReadingProgress) TableName() string {
	return "reading_progress"
}
