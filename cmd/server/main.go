package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/classifier"
	"github.com/avvvet/octotalk/internal/config"
	"github.com/avvvet/octotalk/internal/device"
	"github.com/avvvet/octotalk/internal/handlers"
	"github.com/avvvet/octotalk/internal/memory"
	"github.com/avvvet/octotalk/internal/observability"
	"github.com/avvvet/octotalk/internal/transport"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting OctoTalk",
		zap.String("service", cfg.ServiceName),
		zap.String("printer", cfg.OctoPrintURL),
		zap.String("classifier", cfg.LuisEndpoint()),
	)

	// Conversation store
	var store memory.Store
	if cfg.RedisURL != "" {
		redisStore, err := memory.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		store = redisStore
		logger.Info("Redis connected")
	} else {
		store = memory.NewLocalStore(cfg.SessionTTL)
		logger.Warn("REDIS_URL not set, conversation state is kept in process")
	}

	memoryManager := memory.NewManager(store, cfg.SlotTTL, logger.Named("memory"))
	defer memoryManager.Close()

	luis := classifier.NewLuisClassifier(
		cfg.LuisEndpoint(),
		cfg.LuisAppID,
		cfg.LuisAPIKey,
		cfg.LuisTimeout,
		logger.Named("classifier"),
	)

	printer := device.NewClient(cfg.OctoPrintURL, cfg.OctoPrintAPIKey, cfg.DeviceTimeout, logger.Named("device"))

	bot := handlers.NewMessageHandler(
		luis,
		handlers.NewRouter(cfg.MoveDistance, logger.Named("router")),
		memoryManager,
		printer,
		cfg.ChatAppID,
		cfg.LuisTimezoneOffset,
		logger.Named("bot"),
	)

	var natsTransport *transport.NATSTransport
	if cfg.NatsURL != "" {
		natsTransport, err = transport.NewNATSTransport(transport.NATSConfig{
			URL:            cfg.NatsURL,
			Name:           cfg.ServiceName,
			RequestSubject: cfg.NatsRequestSubject,
			EventSubject:   cfg.NatsEventSubject,
			Timeout:        cfg.NatsTimeout,
		}, bot, logger.Named("nats"))
		if err != nil {
			logger.Fatal("Failed to initialize NATS transport", zap.Error(err))
		}
		if err := natsTransport.Start(); err != nil {
			logger.Fatal("Failed to start NATS transport", zap.Error(err))
		}
		bot.SetNotifier(natsTransport)
	}

	httpServer := transport.NewHTTPServer(transport.HTTPConfig{
		Port:          cfg.Port,
		AppSecret:     cfg.ChatAppSecret,
		AllowedOrigin: cfg.AllowedOrigin,
	}, bot, memoryManager, logger.Named("http"))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Info("OctoTalk is running", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Error shutting down HTTP server", zap.Error(err))
	}

	if natsTransport != nil {
		if err := natsTransport.Close(); err != nil {
			logger.Warn("Error closing NATS transport", zap.Error(err))
		}
	}

	logger.Info("OctoTalk stopped", zap.Int("cached_sessions", memoryManager.GetActiveSessionCount()))
}
