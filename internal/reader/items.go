// Package reader turns stored chapters into reader items: the ordered,
// individually renderable units the reading screen scrolls through and the
// narrator reads aloud.
//
// Items are derived data. They are never persisted and are regenerated from
// the chapter every time it is opened, so a content refresh can never leave
// stale chunks behind.
package reader

import "fmt"

type ItemType string

const (
	ItemTypeTitle      ItemType = "TITLE"
	ItemTypeBody       ItemType = "BODY"
	ItemTypeQuote      ItemType = "QUOTE"
	ItemTypeAuthorNote ItemType = "AUTHOR_NOTE"
)

// Location is the position of an item relative to its neighbours.
type Location string

const (
	LocationFirst  Location = "FIRST"
	LocationMiddle Location = "MIDDLE"
	LocationLast   Location = "LAST"
)

// ReaderItem is implemented by TextItem and ImageItem only.
type ReaderItem interface {
	ItemID() string
	ItemOrder() int
	ItemLocation() Location
	isReaderItem()
}

type TextItem struct {
	ID        string
	ChapterID string
	Order     int
	Text      string
	Type      ItemType
	Location  Location
}

type ImageItem struct {
	ID        string
	ChapterID string
	Order     int
	ImageURL  string
	Caption   string
	Location  Location
}

func (i TextItem) ItemID() string         { return i.ID }
func (i TextItem) ItemOrder() int         { return i.Order }
func (i TextItem) ItemLocation() Location { return i.Location }
func (TextItem) isReaderItem()            {}

func (i ImageItem) ItemID() string         { return i.ID }
func (i ImageItem) ItemOrder() int         { return i.Order }
func (i ImageItem) ItemLocation() Location { return i.Location }
func (ImageItem) isReaderItem()            {}

func itemID(chapterID string, order int) string {
	return fmt.Sprintf("item_%s_%d", chapterID, order)
}

// Text returns what a narrator should say for the item. Images are read by
// their caption, which may be empty.
func Text(item ReaderItem) string {
	switch it := item.(type) {
	case TextItem:
		return it.Text
	case ImageItem:
		return it.Caption
	default:
		panic(fmt.Sprintf("reader: unknown item type %T", item))
	}
}

// FindByOrder returns the index of the item with the given order, or -1.
func FindByOrder(items []ReaderItem, order int) int {
	for i, item := range items {
		if item.ItemOrder() == order {
			return i
		}
	}
	return -1
}

// ItemView is the wire representation of a ReaderItem.
type ItemView struct {
	Kind      string   `json:"kind"` // "text" or "image"
	ID        string   `json:"id"`
	ChapterID string   `json:"chapter_id"`
	Order     int      `json:"order"`
	Location  Location `json:"location"`
	Type      ItemType `json:"type,omitempty"`
	Text      string   `json:"text,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
	Caption   string   `json:"caption,omitempty"`
}

// Views converts items to their wire representation.
func Views(items []ReaderItem) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case TextItem:
			views = append(views, ItemView{
				Kind:      "text",
				ID:        it.ID,
				ChapterID: it.ChapterID,
				Order:     it.Order,
				Location:  it.Location,
				Type:      it.Type,
				Text:      it.Text,
			})
		case ImageItem:
			views = append(views, ItemView{
				Kind:      "image",
				ID:        it.ID,
				ChapterID: it.ChapterID,
				Order:     it.Order,
				Location:  it.Location,
				ImageURL:  it.ImageURL,
				Caption:   it.Caption,
			})
		default:
			panic(fmt.Sprintf("reader: unknown item type %T", item))
		}
	}
	return views
}
