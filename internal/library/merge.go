// Package library keeps the local chapter cache in step with the story API
// without ever losing reading progress recorded on this device.
package library

import (
	"strings"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/remote"
)

// Merge builds the chapter record to persist from a freshly fetched server
// chapter and the locally stored one, if any.
//
// Content fields always come from the server. Read state (IsRead,
// ReadProgress, LastReadPosition, LastReadOffset) always comes from local.
// Book payloads list chapters without their text; an empty server body
// therefore keeps the local body and images.
func Merge(server remote.Chapter, bookID string, local *entities.Chapter) entities.Chapter {
	if bookID == "" {
		bookID = server.BookID
	}

	merged := entities.Chapter{
		ID:      server.ID,
		BookID:  bookID,
		Title:   server.Title,
		Content: server.Content,
		Order:   server.Order,
		Images:  toImages(server.Images),
	}

	if local != nil {
		if merged.BookID == "" {
			merged.BookID = local.BookID
		}
		if merged.Content == "" {
			merged.Content = local.Content
			if len(merged.Images) == 0 {
				merged.Images = local.Images
			}
		}
		merged.IsRead = local.IsRead
		merged.ReadProgress = local.ReadProgress
		merged.LastReadPosition = local.LastReadPosition
		merged.LastReadOffset = local.LastReadOffset
		merged.CreatedAt = local.CreatedAt
	}

	merged.WordCount = len(strings.Fields(merged.Content))
	return merged
}

func toImages(images []remote.Image) []entities.ChapterImage {
	if len(images) == 0 {
		return nil
	}
	out := make([]entities.ChapterImage, 0, len(images))
	for _, img := range images {
		out = append(out, entities.ChapterImage{URL: img.URL, Caption: img.Caption})
	}
	return out
}
