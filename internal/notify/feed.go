package notify

import (
	"context"
	"sync"

	"github.com/abgdnv/rocketcart/internal/cart"
)

// Entry is a notice with its position in the feed.
type Entry struct {
	Seq uint64 `json:"seq"`
	cart.Notice
}

// Feed keeps the most recent notices for clients that poll.
// Sequence numbers start at 1 and never repeat.
type Feed struct {
	mu      sync.RWMutex
	entries []Entry
	start   int
	size    int
	lastSeq uint64
}

// NewFeed creates a feed that keeps the last size notices.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 1
	}
	return &Feed{entries: make([]Entry, 0, size), size: size}
}

func (f *Feed) Notify(_ context.Context, n cart.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastSeq++
	e := Entry{Seq: f.lastSeq, Notice: n}
	if len(f.entries) < f.size {
		f.entries = append(f.entries, e)
		return
	}
	f.entries[f.start] = e
	f.start = (f.start + 1) % f.size
}

// Since returns the retained entries with a sequence number greater than after, oldest first.
func (f *Feed) Since(after uint64) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Entry, 0, len(f.entries))
	for i := range f.entries {
		e := f.entries[(f.start+i)%len(f.entries)]
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// LastSeq returns the sequence number of the newest notice, 0 if none.
func (f *Feed) LastSeq() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastSeq
}
