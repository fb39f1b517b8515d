package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vkbot/internal/bot"
	"vkbot/internal/config"
	"vkbot/internal/plugin"
	"vkbot/internal/vkapi"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", *configPath).
		Int64("groupId", cfg.GroupID).
		Int("wait", cfg.Wait).
		Bool("plugins", cfg.IsPluginsEnabled()).
		Msg("starting vkbot")

	// Create API client
	api := vkapi.New(vkapi.Config{
		Token:          cfg.Token,
		Version:        cfg.APIVersion,
		BaseURL:        cfg.APIBaseURL,
		RequestTimeout: cfg.GetRequestTimeoutDuration(),
		Logger:         logger,
	})
	defer api.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dedupSize := cfg.DedupCacheSize
	if dedupSize < 0 {
		dedupSize = 0
	}

	// Acquire a long poll session and build the bot
	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	b, err := bot.New(startCtx, api, bot.Config{
		GroupID:      cfg.GroupID,
		Wait:         cfg.Wait,
		RetryDelay:   cfg.RetryDelay,
		RequestSlack: cfg.RequestSlack,
		DedupSize:    dedupSize,
		Logger:       logger,
	})
	startCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create bot")
	}

	b.Ignore("message_reply").
		Ignore("message_typing_state").
		Default(func(ctx context.Context, event any) error {
			logger.Debug().Interface("event", event).Msg("unhandled update")
			return nil
		})

	b.OnMessage(func(ctx context.Context, msg *bot.Message) error {
		logger.Debug().
			Int64("peerId", msg.PeerID).
			Int64("fromId", msg.FromID).
			Bool("private", msg.IsPrivate()).
			Msg("message received")
		return nil
	})

	// Load script plugins
	if cfg.IsPluginsEnabled() {
		manager := plugin.NewManager(logger)
		manager.SetTimeout(cfg.GetPluginTimeoutDuration())
		if err := manager.LoadFromDirectory(cfg.GetPluginDirectory()); err != nil {
			logger.Fatal().Err(err).Msg("failed to load plugins")
		}
		defer manager.Close()

		caller := plugin.NewClientCaller(ctx, api, logger)
		manager.Register(b.Poller(), caller)
	}

	// Start polling
	b.Start()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	b.Dispose()
	logger.Info().Msg("stopped")
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
