// Package images keeps local copies of book covers and chapter illustrations
// so they display while offline.
package images

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNoImage = errors.New("no image url")

// Cache stores downloaded images on disk, keyed by owner and source URL.
type Cache struct {
	cacheDir   string
	httpClient *http.Client
}

// NewCache creates a new image cache at the specified directory.
func NewCache(cacheDir string, timeout time.Duration) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Cache{
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Cover returns the cached cover of a book, fetching it on first use.
func (c *Cache) Cover(ctx context.Context, bookID, coverURL string) (string, error) {
	return c.get(ctx, "book_"+safeID(bookID), coverURL)
}

// ChapterImage returns the cached illustration at position index of a
// chapter, fetching it on first use.
func (c *Cache) ChapterImage(ctx context.Context, chapterID string, index int, imageURL string) (string, error) {
	return c.get(ctx, fmt.Sprintf("chapter_%s_%d", safeID(chapterID), index), imageURL)
}

// InvalidateBook removes the cached cover of a book.
func (c *Cache) InvalidateBook(bookID string) error {
	return c.invalidate("book_" + safeID(bookID) + "_*")
}

// InvalidateChapter removes every cached illustration of a chapter.
func (c *Cache) InvalidateChapter(chapterID string) error {
	return c.invalidate("chapter_" + safeID(chapterID) + "_*")
}

// CacheDir returns the cache directory path.
func (c *Cache) CacheDir() string {
	return c.cacheDir
}

func (c *Cache) get(ctx context.Context, owner, url string) (string, error) {
	if url == "" {
		return "", ErrNoImage
	}

	cachePath := filepath.Join(c.cacheDir, filename(owner, url))
	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	if err := c.fetchAndCache(ctx, url, cachePath); err != nil {
		return "", err
	}
	return cachePath, nil
}

func (c *Cache) invalidate(pattern string) error {
	matches, err := filepath.Glob(filepath.Join(c.cacheDir, pattern))
	if err != nil {
		return err
	}

	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// filename is unique per owner and URL, so a changed URL never serves the
// old image.
func filename(owner, url string) string {
	hash := sha256.Sum256([]byte(url))
	ext := strings.ToLower(filepath.Ext(strings.SplitN(url, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		ext = ".img"
	}
	return fmt.Sprintf("%s_%x%s", owner, hash[:8], ext)
}

// safeID keeps ids usable in file names and glob patterns.
func safeID(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return -1
		}
	}, id)
	if clean == id && clean != "" {
		return clean
	}
	hash := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%s-%x", clean, hash[:4])
}

// fetchAndCache downloads an image and saves it to the cache.
func (c *Cache) fetchAndCache(ctx context.Context, url, cachePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "StoryReader/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	// Create temp file in same directory for atomic write
	tmpFile, err := os.CreateTemp(c.cacheDir, "image_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return err
	}
	tmpFile.Close()

	return os.Rename(tmpPath, cachePath)
}
