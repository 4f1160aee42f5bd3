// Package chapters provides database operations for chapter content and the
// read state stored alongside it.
//
// # Usage
//
//	repo := chapters.NewRepository(db)
//	chapter, err := repo.FindChapter("c1") // nil, nil when absent
package chapters

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/storyreader/internal/entities"
)

// Repository handles all chapter database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new chapters repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindChapter returns the chapter with the given ID, or nil if it is not
// stored locally.
func (r *Repository) FindChapter(id string) (*entities.Chapter, error) {
	var chapter entities.Chapter
	err := r.db.Where("id = ?", id).First(&chapter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

// ListChapters returns the chapters of a book in reading order.
func (r *Repository) ListChapters(bookID string) ([]entities.Chapter, error) {
	var chapters []entities.Chapter
	err := r.db.Where("book_id = ?", bookID).Order("chapter_order ASC, id ASC").Find(&chapters).Error
	return chapters, err
}

// contentColumns are the columns an upsert may overwrite on an existing row.
// Read-state columns are only written on insert and by UpdateReadState.
var contentColumns = []string{"book_id", "title", "content", "chapter_order", "images", "word_count", "updated_at"}

// UpsertChapter inserts the chapter or, in the same statement, overwrites the
// content columns of the stored row keyed by ID.
func (r *Repository) UpsertChapter(chapter *entities.Chapter) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(contentColumns),
	}).Create(chapter).Error
}

// UpdateReadState overwrites the read-state columns of one chapter, leaving
// its content alone.
func (r *Repository) UpdateReadState(chapterID string, position, offset int, progress float64, isRead bool) error {
	return r.db.Model(&entities.Chapter{}).
		Where("id = ?", chapterID).
		Updates(map[string]any{
			"last_read_position": position,
			"last_read_offset":   offset,
			"read_progress":      progress,
			"is_read":            isRead,
			"updated_at":         time.Now(),
		}).Error
}

// CountChapters returns the number of chapters stored for a book.
func (r *Repository) CountChapters(bookID string) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Chapter{}).Where("book_id = ?", bookID).Count(&count).Error
	return count, err
}
