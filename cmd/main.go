package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"livepoll/infrastructure/queue"
	"livepoll/infrastructure/ws"
	"livepoll/repositories"
	"livepoll/runtime"
	"livepoll/runtime/workers"
	"livepoll/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Storage (postgres)
	db, err := repositories.Connect(config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing postgres...")
		_ = repositories.Close(db)
	}()

	storage := repositories.NewPollRepository(db, log)
	if config.AutoMigrate {
		if err := storage.Migrate(); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}

	// 3. Queue transport
	transport, err := queue.Connect(log, config.QueueURL, config.QueueStream, config.QueueSubject)
	if err != nil {
		return fmt.Errorf("queue connection failed: %w", err)
	}
	defer transport.Close()

	// 4. Registry, router, bridge, coordinator
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry)
	bridge := runtime.NewBridge(log, transport, config.QueueSubject, registry, router)

	var audience services.Audience
	if config.TargetedTallies {
		audience = registry.SnapshotIDs
	}
	votes := services.NewVoteService(log, storage, router, bridge, audience, config.StorageTimeout)

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewBridgeConsumer(log, bridge, config.ConsumerRetryWait),
		workers.NewPresenceMonitor(log, registry, config.MetricInterval),
	)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 7. Websocket endpoint
	handler := ws.NewHandler(log, registry, router, votes, storage,
		config.ConnectionBufferSize, config.DeliveryTimeout, config.StorageTimeout)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/{user_id}", handler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
