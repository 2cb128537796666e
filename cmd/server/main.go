package main

import (
	"chat-signal/infrastructure/websocket"
	"chat-signal/internal"
	"chat-signal/observability"
	"chat-signal/repositories"
	"chat-signal/runtime"
	"chat-signal/runtime/workers"
	"chat-signal/services"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a shutdown signal or a fatal
// server error. Deferred cleanups always run before the exit code is returned.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env is fine: the process environment is used as is.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugPort := config.Port + 1
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint))
		database.StartDebugServer(db, debugPort, endpoint, RecordMapper)
	}

	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, fmt.Errorf("message repository: %w", err)
	}
	defer func() {
		// Releases the unused part of the leased sequence range.
		_ = messageRepository.Close()
	}()
	conversationRepository := repositories.NewConversationRepository(db, logger)
	contactRepository := repositories.NewContactRepository(db, logger)
	callRepository := repositories.NewCallRepository(db, logger)

	// 3. Registry, presence & relays
	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry(logger, metrics)
	presence := runtime.NewPresenceBroadcaster(logger, registry, metrics)
	registry.OnPresenceChange(presence.Broadcast)

	messageRelay := services.NewMessageRelay(logger, messageRepository, conversationRepository, registry, metrics)
	callSignaling := services.NewCallSignaling(logger, callRepository, registry, metrics, config.RingTimeout)
	registry.OnPresenceChange(callSignaling.HandlePresence)
	contactRelay := services.NewContactRelay(logger, contactRepository, registry)

	limiter := runtime.NewEventLimiter(config.EventRateLimit, config.EventBurst, 0)
	if limiter == nil {
		logger.Warn("Inbound rate limiting disabled", "rate", config.EventRateLimit, "burst", config.EventBurst)
	}
	router := websocket.NewEventRouter(logger, registry, messageRelay, callSignaling, contactRelay, limiter, metrics)

	server := websocket.NewServer(logger, websocket.ServerConfig{
		Addr:            config.Addr(),
		JWTSecret:       []byte(config.JWTSecret),
		AllowedOrigins:  config.Origins(),
		ShutdownTimeout: config.ShutdownTimeout,
		Client: websocket.ClientOptions{
			BufferSize:     config.ConnectionBufferSize,
			MaxMessageSize: config.MaxMessageSize,
			WriteTimeout:   config.WriteTimeout,
			PongTimeout:    config.PongTimeout,
		},
	}, registry, router, metrics)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewRingTimeoutWorker(logger, callSignaling, config.RingSweepInterval),
		workers.NewReporterWorker(logger, registry, callSignaling, config.ReportInterval),
	)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 6. Serve until a signal arrives or the listener fails
	logger.Info("Starting signaling server", "address", config.Addr(), "at", time.Now().UTC())
	serveErr := server.ListenAndServe(ctx)

	// 7. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	sup.Stop()
	<-supDone

	if serveErr != nil {
		return exitRuntime, fmt.Errorf("websocket server error: %w", serveErr)
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

// buildBadgerOpts routes badger logs through logger, whose level does the
// filtering. Debug runs also bypass the directory lock so the inspector can
// open the store next to the server.
func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithLogger(repositories.NewBadgerLogger(logger))

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithBypassLockGuard(true)
	}

	return options
}

// RecordMapper renders stored records on the debug inspector page.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	view, err := repositories.DescribeRecord(key, val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = view.Kind
	row.Detail = view.Detail
	return row
}
