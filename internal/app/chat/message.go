/*
Package chat contains the core logic of the client: the room and
private-message session state machines, the message history, the
participant roster, and the event queue consumers pull from.

This file defines the Message struct shared by both sub-protocols.
*/
package chat

import (
	"chatango/internal/app/user"
)

// Origin classifies where a message came from.
type Origin int

const (
	// OriginHistory marks a message replayed from the room's backlog.
	OriginHistory Origin = iota

	// OriginLive marks a message received in real time.
	OriginLive
)

// Message is one chat message. For the room protocol the permanent ID is
// assigned asynchronously after arrival; until then SequenceIndex holds the
// provisional ordering token.
type Message struct {
	// PostTime is seconds since epoch, float precision.
	PostTime float64

	// Raw is the original markup-bearing payload.
	Raw string

	// Text is the payload with markup stripped and entities unescaped.
	Text string

	// Author is a snapshot of the sender.
	Author user.User

	// SequenceIndex is the provisional ordering token assigned at
	// arrival (room protocol only). Unique only until the permanent ID
	// replaces it.
	SequenceIndex string

	// ID is the permanent message id, globally unique within a room once
	// assigned.
	ID string

	// Origin records whether the message arrived live or from history.
	Origin Origin
}
