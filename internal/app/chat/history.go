/*
Package chat contains the core logic of the client.

This file defines the HistoryStore: the ordered, capacity-bounded,
dedup-aware collection of messages for one room. The receive loop is the
only writer; the read lock covers consumer-side lookups.
*/
package chat

import (
	"sort"
	"sync"
)

// minHistoryCapacity is the protocol floor for the history bound.
const minHistoryCapacity = 10

// HistoryStore keeps the most recent messages of one room sorted ascending
// by post time.
type HistoryStore struct {
	mu       sync.RWMutex
	capacity int
	messages []*Message
}

// NewHistoryStore constructs a store bounded to capacity entries, clamped
// to the protocol floor.
func NewHistoryStore(capacity int) *HistoryStore {
	if capacity < minHistoryCapacity {
		capacity = minHistoryCapacity
	}
	return &HistoryStore{capacity: capacity}
}

// SetCapacity adjusts the bound, clamped to the floor. The store shrinks on
// the next insertion.
func (h *HistoryStore) SetCapacity(capacity int) {
	if capacity < minHistoryCapacity {
		capacity = minHistoryCapacity
	}
	h.mu.Lock()
	h.capacity = capacity
	h.mu.Unlock()
}

// Add inserts a message and reports whether it was stored. During a
// reconnect epoch, a history-origin message whose permanent id is already
// present is a replayed duplicate and is discarded; a history message not
// yet present is one that arrived while the connection was down, so it is
// promoted to live origin and the caller delivers it as a fresh event.
func (h *HistoryStore) Add(msg *Message, reconnectEpoch bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if reconnectEpoch && msg.Origin == OriginHistory {
		for _, existing := range h.messages {
			if existing.ID == msg.ID {
				return false
			}
		}
		msg.Origin = OriginLive
		h.messages = append(h.messages, msg)
		h.sortLocked()
	} else {
		h.messages = append(h.messages, msg)
		if msg.Origin == OriginHistory {
			h.sortLocked()
		}
	}

	if len(h.messages) > h.capacity {
		h.messages = h.messages[len(h.messages)-h.capacity:]
	}
	return true
}

// Find returns every stored message matching the predicate, oldest first.
func (h *HistoryStore) Find(pred func(*Message) bool) []*Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var matches []*Message
	for _, msg := range h.messages {
		if pred(msg) {
			matches = append(matches, msg)
		}
	}
	return matches
}

// Len returns the number of stored messages.
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Messages returns a snapshot of the store, oldest first.
func (h *HistoryStore) Messages() []*Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *HistoryStore) sortLocked() {
	sort.SliceStable(h.messages, func(i, j int) bool {
		return h.messages[i].PostTime < h.messages[j].PostTime
	})
}
