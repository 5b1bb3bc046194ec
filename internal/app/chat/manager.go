/*
Package chat contains the core logic of the client.

This file defines the Manager struct, which tracks every room session a
process is connected to. Bot processes commonly sit in several rooms at
once; the manager gives them one place to join, look up and tear down
sessions.
*/
package chat

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"chatango/internal/configs"
	"chatango/internal/pkg/logx"
)

// Manager coordinates all connected room sessions, keyed by room name.
type Manager struct {
	// rooms stores the connected sessions by lowercased room name.
	rooms map[string]*Room

	// config holds the client's read-only configuration settings.
	config *configs.AppConfig

	// mu protects concurrent access to the rooms map.
	mu sync.RWMutex

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs and returns a new Manager instance.
func NewManager(cfg *configs.AppConfig) *Manager {
	return &Manager{
		rooms:  make(map[string]*Room),
		config: cfg,
		logger: logx.Logger().With().Str("component", "manager").Logger(),
	}
}

// Join creates a room session and logs it in. Joining a room that is
// already connected returns the existing session.
func (m *Manager) Join(roomName, username, password string) (*Room, error) {
	key := strings.ToLower(roomName)

	m.mu.Lock()
	if room, ok := m.rooms[key]; ok {
		m.mu.Unlock()
		m.logger.Warn().Str("room", key).Msg("Already joined, returning existing session.")
		return room, nil
	}
	room := NewRoom(key, m.config)
	m.rooms[key] = room
	m.mu.Unlock()

	if err := room.Login(username, password); err != nil {
		m.mu.Lock()
		delete(m.rooms, key)
		m.mu.Unlock()
		return nil, err
	}

	m.logger.Info().Str("room", key).Msg("Joined room.")
	return room, nil
}

// Get retrieves a connected room session by name, or nil.
func (m *Manager) Get(roomName string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[strings.ToLower(roomName)]
}

// Leave disconnects and forgets one room session.
func (m *Manager) Leave(roomName string) {
	key := strings.ToLower(roomName)

	m.mu.Lock()
	room := m.rooms[key]
	delete(m.rooms, key)
	m.mu.Unlock()

	if room != nil {
		room.Disconnect()
		m.logger.Info().Str("room", key).Msg("Left room.")
	}
}

// Shutdown disconnects every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, room := range rooms {
		room.Disconnect()
	}
	m.logger.Info().Int("rooms", len(rooms)).Msg("Manager shutdown complete.")
}
