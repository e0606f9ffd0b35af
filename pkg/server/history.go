package server

import (
	"sync"
	"time"

	"github.com/vango-dev/villain/pkg/protocol"
)

// historyEntry stores a sent op batch for potential replay.
type historyEntry struct {
	batch  *protocol.Ops
	sentAt time.Time
}

// History is a thread-safe ring buffer of the most recent op batches of a
// session. Batches are stored decoded, so a client that reconnects with
// another codec still gets them replayed.
//
// The ring buffer overwrites oldest entries when full, maintaining a sliding
// window of recent batches that can be replayed if a client misses some.
type History struct {
	mu       sync.RWMutex
	entries  []historyEntry
	head     int // Next write position (circular)
	count    int
	capacity int
}

// NewHistory creates a ring buffer holding up to capacity batches.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{
		entries:  make([]historyEntry, capacity),
		capacity: capacity,
	}
}

// Add stores a batch. Sequences are expected to increase by one.
func (h *History) Add(batch *protocol.Ops) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = historyEntry{batch: batch, sentAt: time.Now()}
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
}

// Since returns the batches with sequences in (after, to], in order. It
// reports false when any of them is no longer held.
func (h *History) Since(after, to uint64) ([]*protocol.Ops, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if after == to {
		return nil, true
	}
	if after > to || h.count == 0 {
		return nil, false
	}

	var out []*protocol.Ops
	for i := 0; i < h.count; i++ {
		// Oldest first
		e := h.entries[(h.head-h.count+i+h.capacity)%h.capacity]
		if e.batch.Seq > after && e.batch.Seq <= to {
			out = append(out, e.batch)
		}
	}
	if uint64(len(out)) != to-after || out[0].Seq != after+1 {
		return nil, false
	}
	return out, true
}

// Len returns the number of held batches.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Clear drops every batch.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		h.entries[i] = historyEntry{}
	}
	h.head = 0
	h.count = 0
}
