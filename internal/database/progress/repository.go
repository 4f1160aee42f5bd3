// Package progress provides database operations for reading positions.
//
// # Usage
//
//	repo := progress.NewRepository(db)
//	latest, err := repo.LatestForBook("b1")
package progress

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/storyreader/internal/entities"
)

// Repository handles reading progress database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveProgress upserts the position for the progress' chapter.
func (r *Repository) SaveProgress(p *entities.ReadingProgress) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chapter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"book_id", "item_index", "scroll_offset", "total_items", "chapter_progress", "book_progress", "last_read_at"}),
	}).Create(p).Error
}

// GetForChapter returns the stored position for a chapter, or nil.
func (r *Repository) GetForChapter(chapterID string) (*entities.ReadingProgress, error) {
	var p entities.ReadingProgress
	err := r.db.Where("chapter_id = ?", chapterID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestForBook returns the most recently updated position in a book, or nil.
func (r *Repository) LatestForBook(bookID string) (*entities.ReadingProgress, error) {
	var p entities.ReadingProgress
	err := r.db.Where("book_id = ?", bookID).Order("last_read_at DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListForBook returns every stored position of a book.
func (r *Repository) ListForBook(bookID string) ([]entities.ReadingProgress, error) {
	var list []entities.ReadingProgress
	err := r.db.Where("book_id = ?", bookID).Order("last_read_at DESC").Find(&list).Error
	return list, err
}
