/*
Package chat contains the core logic of the client.

This file defines the ParticipantRegistry: the current online-user set for
one room, keyed by connection session id. Join order is preserved.
*/
package chat

import (
	"sync"

	"chatango/internal/app/user"
)

// ParticipantRegistry tracks who is online in one room.
type ParticipantRegistry struct {
	mu    sync.RWMutex
	users []user.User
}

// NewParticipantRegistry constructs an empty registry.
func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{}
}

// Add records a participant coming online.
func (r *ParticipantRegistry) Add(u user.User) {
	r.mu.Lock()
	r.users = append(r.users, u)
	r.mu.Unlock()
}

// Remove drops the participant with the given session id and returns the
// removed snapshot.
func (r *ParticipantRegistry) Remove(sessionID int) (user.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, u := range r.users {
		if u.SessionID == sessionID {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return u, true
		}
	}
	return user.User{}, false
}

// Replace swaps the entry with the matching session id for the new
// snapshot and returns the old one. Registry size is unchanged when the
// session id is found.
func (r *ParticipantRegistry) Replace(sessionID int, u user.User) (user.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, old := range r.users {
		if old.SessionID == sessionID {
			r.users[i] = u
			return old, true
		}
	}
	return user.User{}, false
}

// Find returns every online participant matching the predicate, in join
// order.
func (r *ParticipantRegistry) Find(pred func(user.User) bool) []user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []user.User
	for _, u := range r.users {
		if pred(u) {
			matches = append(matches, u)
		}
	}
	return matches
}

// Len returns the number of online participants.
func (r *ParticipantRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
