package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the relay lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the listener and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Moderation (optional)
	var moderator *moderation.Moderator
	if config.ModerationFilepath != "" {
		words, err := internal.LoadWords(config.ModerationFilepath)
		if err != nil {
			return fmt.Errorf("moderation word list: %w", err)
		}
		if len(words) == 0 {
			log.Warn("Moderation word list is empty, moderation disabled")
		} else {
			replacement, err := internal.CharacterRune(config.CharReplacement)
			if err != nil {
				return err
			}
			moderator, err = moderation.NewModerator(words, replacement)
			if err != nil {
				return fmt.Errorf("moderator setup failed: %w", err)
			}
			log.Info("Moderation enabled", "words", len(words))
		}
	}

	// 3. Observability & Sinks
	monitor := observability.NewMonitoring(log)
	timeline := sink.NewTimelineSink(config.TimelineSize)
	if config.DebugPort > 0 {
		internal.StartDebugServer(log, config.DebugPort, config.DebugEndpoint, monitor, timeline)
	}

	// 4. Relay Server
	opts := runtime.Options{
		ServerName:   config.ServerName,
		NetworkName:  config.NetworkName,
		Motd:         internal.LoadMotd(config.MotdFilepath),
		PingInterval: config.PingInterval,
		WriteTimeout: config.WriteTimeout,
		EventBuffer:  config.EventBufferSize,
		OutboxSize:   config.OutboxSize,
		Moderator:    moderator,
	}
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := runtime.NewServer(log, addr, opts, monitor, sink.NewLogSink(log), timeline)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Use an error channel to capture Run() issues
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := <-errChan; err != nil {
			return err
		}
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	log.Info("Program stopped cleanly")
	return nil
}
