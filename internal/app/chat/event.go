/*
Package chat contains the core logic of the client.

This file defines the typed event union delivered to consumers and the
unbounded blocking queue that carries it. Every state mutation that
produces a user-visible event enqueues exactly once; an enqueue never
blocks or drops, so the receive loop can always make progress.
*/
package chat

import (
	"sync"

	"chatango/internal/app/user"
	"chatango/internal/pkg/errs"
)

// ReplyFunc sends text back to whatever produced the event: the PM peer or
// the room itself.
type ReplyFunc func(text string) error

// Event is the tagged union delivered by EventQueue.Next. Concrete types
// are MessageEvent, LoginEvent, LogoutEvent and NickChangeEvent.
type Event interface {
	isEvent()
}

// MessageEvent carries one received message.
type MessageEvent struct {
	Message *Message
	Reply   ReplyFunc
}

// LoginEvent signals a user coming online. User is nil for the PM
// protocol, which only reports the name.
type LoginEvent struct {
	Username string
	User     *user.User
	Reply    ReplyFunc
}

// LogoutEvent signals a user going offline. User is nil for the PM
// protocol.
type LogoutEvent struct {
	Username string
	User     *user.User
	Reply    ReplyFunc
}

// NickChangeEvent signals a participant renaming in a room.
type NickChangeEvent struct {
	Old   user.User
	New   user.User
	Reply ReplyFunc
}

func (*MessageEvent) isEvent()    {}
func (*LoginEvent) isEvent()      {}
func (*LogoutEvent) isEvent()     {}
func (*NickChangeEvent) isEvent() {}

// EventQueue is the per-session unbounded FIFO queue. Next blocks until an
// event exists or the queue is closed by disconnect.
type EventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

// NewEventQueue constructs an empty queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an event. Pushes after Close are dropped.
func (q *EventQueue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, e)
	q.cond.Signal()
}

// Next blocks until an event is available and returns it in arrival order.
// After Close drains, it fails with a not-connected error.
func (q *EventQueue) Next() (Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, errs.New(errs.ErrNotConnected)
	}

	e := q.items[0]
	q.items = q.items[1:]
	return e, nil
}

// Close wakes all blocked consumers. Already-queued events remain
// deliverable.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
