package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerJoinReturnsExistingSession(t *testing.T) {
	m := NewManager(testConfig())

	room := NewRoom("testroom", testConfig())
	m.rooms[room.Name] = room

	// Joining a connected room never dials; it hands back the session.
	same, err := m.Join("TestRoom", "", "")
	require.NoError(t, err)
	assert.Same(t, room, same)
}

func TestManagerGetIsCaseInsensitive(t *testing.T) {
	m := NewManager(testConfig())
	room := NewRoom("testroom", testConfig())
	m.rooms[room.Name] = room

	assert.Same(t, room, m.Get("TESTROOM"))
	assert.Nil(t, m.Get("other"))
}

func TestManagerLeave(t *testing.T) {
	m := NewManager(testConfig())
	room, _ := testRoom(t)
	m.rooms[room.Name] = room

	m.Leave("TestRoom")
	assert.Nil(t, m.Get("testroom"))
	assert.Equal(t, StatusDisconnected, room.Status())

	m.Leave("testroom") // second leave is a no-op
}

func TestManagerShutdown(t *testing.T) {
	m := NewManager(testConfig())
	a, _ := testRoom(t)
	b := NewRoom("otherroom", testConfig())
	b.status = StatusRunning
	m.rooms[a.Name] = a
	m.rooms[b.Name] = b

	m.Shutdown()

	assert.Nil(t, m.Get(a.Name))
	assert.Nil(t, m.Get(b.Name))
	assert.Equal(t, StatusDisconnected, a.Status())
	assert.Equal(t, StatusDisconnected, b.Status())
}
