/*
Package main is the entry point for the example chat bot.

It loads configuration, initializes the global logging system, joins the
configured room, echoes incoming messages back, and handles operating
system interrupt signals (SIGINT, SIGTERM) for a clean disconnect.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatango/internal/app/chat"
	"chatango/internal/configs"
	"chatango/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("room", cfg.RoomName).
		Bool("debug_frames", cfg.DebugFrames).
		Msg("Configuration loaded successfully")

	if cfg.RoomName == "" {
		logx.Fatal(fmt.Errorf("ROOM_NAME environment variable is required"), "No room configured")
	}

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := chat.NewManager(cfg)

	room, err := manager.Join(cfg.RoomName, cfg.Username, cfg.Password)
	if err != nil {
		logx.Fatal(err, "Failed to join room")
	}

	// Pull events until the session dies or a signal arrives.
	go func() {
		defer stop()
		for {
			event, err := room.NextEvent()
			if err != nil {
				logx.Info("Event stream ended")
				return
			}

			switch e := event.(type) {
			case *chat.MessageEvent:
				logx.Info("Message received",
					"from", e.Message.Author.Name(),
					"text", e.Message.Text)
				if err := e.Reply("echo: " + e.Message.Text); err != nil {
					logx.Error(err, "Failed to reply")
				}
			case *chat.LoginEvent:
				logx.Info("User logged in", "username", e.Username)
			case *chat.LogoutEvent:
				logx.Info("User logged out", "username", e.Username)
			case *chat.NickChangeEvent:
				logx.Info("User renamed",
					"old", e.Old.Name(),
					"new", e.New.Name())
			}
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Disconnecting...")
	manager.Shutdown()
	logx.Info("Client stopped.")
}
