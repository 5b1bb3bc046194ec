package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyMsg(id string, postTime float64, origin Origin) *Message {
	return &Message{ID: id, PostTime: postTime, Origin: origin}
}

func assertSorted(t *testing.T, h *HistoryStore) {
	t.Helper()
	msgs := h.Messages()
	for i := 1; i < len(msgs); i++ {
		assert.LessOrEqual(t, msgs[i-1].PostTime, msgs[i].PostTime)
	}
}

func TestHistoryCapacityFloor(t *testing.T) {
	h := NewHistoryStore(3)
	for i := 0; i < 12; i++ {
		h.Add(historyMsg(fmt.Sprintf("m%d", i), float64(i), OriginLive), false)
	}
	assert.Equal(t, 10, h.Len(), "capacity clamps to the protocol floor")
}

func TestHistoryBoundDropsOldest(t *testing.T) {
	h := NewHistoryStore(10)
	for i := 0; i < 15; i++ {
		h.Add(historyMsg(fmt.Sprintf("m%d", i), float64(i), OriginLive), false)
		assert.LessOrEqual(t, h.Len(), 10)
		assertSorted(t, h)
	}

	msgs := h.Messages()
	require.Len(t, msgs, 10)
	assert.Equal(t, "m5", msgs[0].ID, "oldest entries are dropped")
	assert.Equal(t, "m14", msgs[9].ID)
}

func TestHistorySortsBacklog(t *testing.T) {
	h := NewHistoryStore(20)
	h.Add(historyMsg("c", 30, OriginHistory), false)
	h.Add(historyMsg("a", 10, OriginHistory), false)
	h.Add(historyMsg("b", 20, OriginHistory), false)

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestHistoryReconnectDedup(t *testing.T) {
	h := NewHistoryStore(20)
	require.True(t, h.Add(historyMsg("dup", 10, OriginHistory), true))
	assert.Equal(t, 1, h.Len())

	stored := h.Add(historyMsg("dup", 10, OriginHistory), true)
	assert.False(t, stored, "duplicate permanent id is discarded during reconnect epoch")
	assert.Equal(t, 1, h.Len())
}

func TestHistoryReconnectPromotesMissedBacklog(t *testing.T) {
	h := NewHistoryStore(20)
	msg := historyMsg("fresh", 10, OriginHistory)

	require.True(t, h.Add(msg, true))
	assert.Equal(t, OriginLive, msg.Origin,
		"backlog that arrived while disconnected is delivered as live")
}

func TestHistoryFind(t *testing.T) {
	h := NewHistoryStore(20)
	h.Add(historyMsg("x", 1, OriginLive), false)
	h.Add(historyMsg("y", 2, OriginLive), false)

	matches := h.Find(func(m *Message) bool { return m.ID == "y" })
	require.Len(t, matches, 1)
	assert.Equal(t, "y", matches[0].ID)
}
