package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	bookstore "github.com/mrlokans/storyreader/internal/database/books"
)

// ImagesController serves cached covers and chapter illustrations.
type ImagesController struct {
	books    BookStore
	chapters ChapterStore
	cache    ImageCache
}

func NewImagesController(books BookStore, chapters ChapterStore, cache ImageCache) *ImagesController {
	return &ImagesController{books: books, chapters: chapters, cache: cache}
}

func (ic *ImagesController) Cover(c *gin.Context) {
	bookID, ok := requireParam(c, "id")
	if !ok {
		return
	}

	book, err := ic.books.GetBook(bookID)
	if errors.Is(err, bookstore.ErrNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}
	if book.CoverURL == "" {
		respondNotFound(c, "cover")
		return
	}

	path, err := ic.cache.Cover(c.Request.Context(), book.ID, book.CoverURL)
	if err != nil {
		respondError(c, http.StatusBadGateway, "fetch_failed", "could not fetch cover: "+err.Error())
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}

func (ic *ImagesController) ChapterImage(c *gin.Context) {
	chapterID, ok := requireParam(c, "id")
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		respondBadRequest(c, "index must be a non-negative integer")
		return
	}

	ch, err := ic.chapters.FindChapter(chapterID)
	if err != nil {
		respondInternalError(c, err, "find chapter")
		return
	}
	if ch == nil || index >= len(ch.Images) || ch.Images[index].URL == "" {
		respondNotFound(c, "image")
		return
	}

	path, err := ic.cache.ChapterImage(c.Request.Context(), ch.ID, index, ch.Images[index].URL)
	if err != nil {
		respondError(c, http.StatusBadGateway, "fetch_failed", "could not fetch image: "+err.Error())
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}
