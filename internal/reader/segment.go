package reader

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mrlokans/storyreader/internal/entities"
)

// MaxChunkLength is the longest body chunk, in characters, that Segment
// produces for text with natural break points.
const MaxChunkLength = 60

var paragraphBreak = regexp.MustCompile(`\n\s*\n+`)

// Segment converts a chapter into its reader items: the title first, then
// the body chunks, then any images. Orders are dense and start at 1.
func Segment(chapter entities.Chapter) []ReaderItem {
	title := chapter.Title
	if strings.TrimSpace(title) == "" {
		title = ""
	}

	chunks := SplitChunks(chapter.Content, MaxChunkLength)
	images := make([]entities.ChapterImage, 0, len(chapter.Images))
	for _, img := range chapter.Images {
		if strings.TrimSpace(img.URL) != "" {
			images = append(images, img)
		}
	}

	items := make([]ReaderItem, 0, 1+len(chunks)+len(images))
	items = append(items, TextItem{
		ID:        itemID(chapter.ID, 1),
		ChapterID: chapter.ID,
		Order:     1,
		Text:      title,
		Type:      ItemTypeTitle,
		Location:  LocationFirst,
	})

	total := len(chunks) + len(images)
	order := 2
	for i, chunk := range chunks {
		items = append(items, TextItem{
			ID:        itemID(chapter.ID, order),
			ChapterID: chapter.ID,
			Order:     order,
			Text:      chunk,
			Type:      ItemTypeBody,
			Location:  locationFor(i, total),
		})
		order++
	}
	for i, img := range images {
		items = append(items, ImageItem{
			ID:        itemID(chapter.ID, order),
			ChapterID: chapter.ID,
			Order:     order,
			ImageURL:  img.URL,
			Caption:   img.Caption,
			Location:  locationFor(len(chunks)+i, total),
		})
		order++
	}

	return items
}

func locationFor(index, total int) Location {
	switch {
	case total == 1 || index == total-1:
		return LocationLast
	case index == 0:
		return LocationFirst
	default:
		return LocationMiddle
	}
}

// SplitChunks splits chapter text into paragraphs and breaks every paragraph
// longer than maxLen into chunks of at most maxLen characters.
func SplitChunks(content string, maxLen int) []string {
	text := strings.ReplaceAll(content, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var chunks []string
	for _, paragraph := range paragraphBreak.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if runeLen(paragraph) <= maxLen {
			chunks = append(chunks, paragraph)
			continue
		}
		chunks = append(chunks, chunkParagraph(paragraph, maxLen)...)
	}
	return chunks
}

// chunkParagraph packs whole lines greedily and smart-splits any line that
// cannot fit on its own.
func chunkParagraph(paragraph string, maxLen int) []string {
	lines := strings.Split(paragraph, "\n")

	var out []string
	buf := ""
	flush := func() {
		if s := strings.TrimSpace(buf); s != "" {
			out = append(out, s)
		}
		buf = ""
	}

	for i, line := range lines {
		candidate := line
		if buf != "" {
			candidate = buf + "\n" + line
		}

		if runeLen(candidate) <= maxLen {
			buf = candidate
		} else {
			needed := runeLen(line)
			if buf != "" {
				needed++
			}
			flush()
			if needed > maxLen {
				for _, piece := range smartSplit(line, maxLen) {
					if s := strings.TrimSpace(piece); s != "" {
						out = append(out, s)
					}
				}
			} else {
				buf = line
			}
		}

		if i == len(lines)-1 {
			flush()
		}
	}
	return out
}

// smartSplit cuts text into windows of maxLen characters, preferring to end a
// window just after punctuation or whitespace found in its last third.
func smartSplit(text string, maxLen int) []string {
	runes := []rune(text)
	minBreak := maxLen * 2 / 3

	var pieces []string
	for start := 0; start < len(runes); {
		end := start + maxLen
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastBreak(runes[start:end]); cut >= minBreak {
			end = start + cut + 1
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, piece)
		}
		start = end
	}

	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if runeLen(piece) > maxLen {
			out = append(out, hardSplit(piece, maxLen)...)
			continue
		}
		out = append(out, piece)
	}
	return out
}

func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '…', '”', '’', ',', ';', ':', ' ', '\n':
			return i
		}
	}
	return -1
}

func hardSplit(text string, maxLen int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += maxLen {
		end := min(start+maxLen, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
