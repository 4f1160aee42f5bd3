package session

import (
	"context"
	"strings"
	"time"

	"github.com/mrlokans/storyreader/internal/reader"
)

// Narrator walks reader items in order, calling onItem as each one starts.
// It returns nil once the last item has been narrated and ctx.Err() when
// stopped early.
type Narrator interface {
	Play(ctx context.Context, items []reader.ReaderItem, start int, wpm func() int, onItem func(index int)) error
}

// PacedNarrator holds every item on screen for as long as it takes to speak
// its words at the current words-per-minute rate. Speech synthesis itself
// happens on the client.
type PacedNarrator struct {
	after func(time.Duration) <-chan time.Time
}

func NewPacedNarrator() *PacedNarrator {
	return &PacedNarrator{after: time.After}
}

// WordDelay returns how long one word is spoken at wpm.
func WordDelay(wpm int) time.Duration {
	if wpm <= 0 {
		wpm = 1
	}
	return time.Duration(60.0/float64(wpm)*1000) * time.Millisecond
}

// ItemDelay returns the time an item is narrated for. Images and empty
// items still get one word of time.
func ItemDelay(item reader.ReaderItem, wpm int) time.Duration {
	words := len(strings.Fields(reader.Text(item)))
	if words == 0 {
		words = 1
	}
	return time.Duration(words) * WordDelay(wpm)
}

func (n *PacedNarrator) Play(ctx context.Context, items []reader.ReaderItem, start int, wpm func() int, onItem func(index int)) error {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(items); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		onItem(i)

		select {
		case <-n.after(ItemDelay(items[i], wpm())):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
