package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatango/internal/pkg/errs"
)

func TestEventQueueFIFO(t *testing.T) {
	q := NewEventQueue()
	q.Push(&LoginEvent{Username: "first"})
	q.Push(&LoginEvent{Username: "second"})

	e, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", e.(*LoginEvent).Username)

	e, err = q.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", e.(*LoginEvent).Username)
}

func TestEventQueueBlocksUntilPush(t *testing.T) {
	q := NewEventQueue()
	done := make(chan Event, 1)

	go func() {
		e, err := q.Next()
		if err == nil {
			done <- e
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(&LogoutEvent{Username: "late"})

	select {
	case e := <-done:
		assert.Equal(t, "late", e.(*LogoutEvent).Username)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on push")
	}
}

func TestEventQueueClose(t *testing.T) {
	q := NewEventQueue()
	q.Push(&LoginEvent{Username: "queued"})
	q.Close()

	// Queued events drain before the closed state surfaces.
	e, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, "queued", e.(*LoginEvent).Username)

	_, err = q.Next()
	assert.True(t, errs.Is(err, errs.ErrNotConnected))

	q.Push(&LoginEvent{Username: "dropped"})
	_, err = q.Next()
	assert.Error(t, err, "pushes after close are dropped")
}
