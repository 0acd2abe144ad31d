package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/storage"
	"chat-relay/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Optional durability collaborator (BadgerDB journal)
	var recorder contract.Recorder
	if config.JournalPath != "" {
		db, err := badger.Open(badger.DefaultOptions(config.JournalPath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("journal opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing journal...")
			_ = db.Close()
		}()
		recorder = storage.NewJournal(db, log)
	}

	// 3. Optional payload moderation
	var filter runtime.PayloadFilter
	if config.CensoredWordsFile != "" {
		words, err := moderation.LoadWordsFile(config.CensoredWordsFile)
		if err != nil {
			return fmt.Errorf("censored words loading failed: %w", err)
		}
		replacement, err := characterRune(config.CensorReplacement)
		if err != nil {
			return err
		}
		censor, err := moderation.NewCensor(words, replacement)
		if err != nil {
			return fmt.Errorf("censor build failed: %w", err)
		}
		filter = censor
		log.Info(fmt.Sprintf("%d censored words loaded", len(words)))
	}

	// 4. Relay core
	registry := runtime.NewRegistry()
	rooms := runtime.NewRoomTable()
	presence := runtime.NewPresenceTracker()
	relay := runtime.NewRelay(log, registry, rooms, recorder, filter, config.EchoSelf)

	// Membership rights live in the CRUD store; until an adapter is wired
	// in, every authenticated principal may join any room it knows the id
	// of, mirroring the upstream API that already scoped room ids per user.
	authorizer := contract.AuthorizerFunc(
		func(context.Context, domain.UserID, domain.RoomID) bool { return true },
	)

	lifecycle := runtime.NewLifecycle(log, registry, rooms, presence, relay, authorizer, recorder)

	// 5. Context, signals, supervision
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewTelemetryWorker(log, registry, rooms, presence, config.StatsInterval))
	go sup.Run(ctx)

	// 6. HTTP server with the websocket endpoint
	handler := ws.NewHandler(log, lifecycle, auth.NewTokenParser(config.TokenSecret),
		ws.HandlerConfig{
			AllowedOrigins: config.AllowedOrigins,
			BufferSize:     config.ConnectionBufferSize,
			ReadLimit:      config.MaxMessageSize,
		})

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown timed out", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// characterRune enforces that the configured replacement is one character.
func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CENSOR_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
