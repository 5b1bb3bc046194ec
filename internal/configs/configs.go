/*
Package configs is responsible for loading and parsing the client's
configuration settings.

All values come from environment variables with sensible defaults, so a bot
process runs with zero configuration against the production chat service.
*/
package configs

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig contains all configuration parameters required by the client.
type AppConfig struct {
	// Environment selects logging behavior ("development" enables the
	// console writer at debug level).
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// PMHost is the private-message server host. Room servers are chosen
	// per room name by the shard selector instead.
	PMHost string `env:"PM_HOST" envDefault:"s2.chatango.com"`

	// Port is the TCP port both sub-protocols connect to.
	Port int `env:"CHAT_PORT" envDefault:"443"`

	// LoginURL is the HTTP endpoint the auth token is fetched from.
	LoginURL string `env:"LOGIN_URL" envDefault:"http://chatango.com/login"`

	// KeepaliveInterval is the idle-frame send period.
	KeepaliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"60s"`

	// HistoryCapacity bounds the per-room message history. The protocol
	// floor is 10.
	HistoryCapacity int `env:"HISTORY_CAPACITY" envDefault:"100"`

	// DebugFrames enables debug logging of every frame sent and received.
	DebugFrames bool `env:"DEBUG_FRAMES" envDefault:"false"`

	// Credentials for the example bot entry point.
	RoomName string `env:"ROOM_NAME"`
	Username string `env:"CHAT_USERNAME"`
	Password string `env:"CHAT_PASSWORD"`
}

// LoadConfig reads and parses the client configuration from environment
// variables, applying defaults and validating ranges.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment configuration: %w", err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the valid range (1-65535)", cfg.Port)
	}

	if cfg.KeepaliveInterval < time.Second {
		return nil, fmt.Errorf("keepalive interval %s is below the 1s floor", cfg.KeepaliveInterval)
	}

	if cfg.HistoryCapacity < 10 {
		cfg.HistoryCapacity = 10
	}

	return cfg, nil
}
