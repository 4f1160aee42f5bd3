// Package remote is the client for the story API that serves books and
// chapter text.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the API reports the book or chapter missing.
var ErrNotFound = errors.New("not found")

type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Chapter is a chapter as served by the API. Chapters embedded in a book
// detail payload usually come without content.
type Chapter struct {
	ID      string  `json:"id"`
	BookID  string  `json:"book_id,omitempty"`
	Title   string  `json:"title"`
	Content string  `json:"content,omitempty"`
	Order   int     `json:"order"`
	Images  []Image `json:"images,omitempty"`
}

type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Narrator    string    `json:"narrator,omitempty"`
	Chapters    []Chapter `json:"chapters"`
}

// Client fetches books and chapters from the story API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a story API client. An empty token disables the
// Authorization header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// FetchChapterDetail fetches one chapter including its full text.
func (c *Client) FetchChapterDetail(ctx context.Context, chapterID string) (*Chapter, error) {
	if chapterID == "" {
		return nil, fmt.Errorf("chapter id is required")
	}

	var chapter Chapter
	if err := c.get(ctx, "/api/chapters/"+url.PathEscape(chapterID), &chapter); err != nil {
		return nil, fmt.Errorf("fetch chapter %s: %w", chapterID, err)
	}
	return &chapter, nil
}

// FetchBookDetail fetches a book with its chapter list.
func (c *Client) FetchBookDetail(ctx context.Context, bookID string) (*Book, error) {
	if bookID == "" {
		return nil, fmt.Errorf("book id is required")
	}

	var book Book
	if err := c.get(ctx, "/api/books/"+url.PathEscape(bookID), &book); err != nil {
		return nil, fmt.Errorf("fetch book %s: %w", bookID, err)
	}
	return &book, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "StoryReader/1.0 (https://github.com/mrlokans/storyreader)")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
