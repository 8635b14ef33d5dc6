package main

import (
	"club-chat/access"
	"club-chat/auth"
	"club-chat/connectivity"
	"club-chat/contract"
	transport "club-chat/infrastructure/http"
	"club-chat/infrastructure/ws"
	"club-chat/internal"
	"club-chat/observability"
	"club-chat/readstate"
	"club-chat/repositories"
	"club-chat/runtime"
	"club-chat/runtime/workers"
	"club-chat/services"
	"club-chat/session"
	"club-chat/storage"
	"club-chat/storage/redisstore"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// messageStore is what the transport needs from either backend.
type messageStore interface {
	contract.MessageStore
	transport.HistoryReader
	contract.Pinger
}

// badgerMessages adds the liveness probe the badger store gets from its database.
type badgerMessages struct {
	*storage.BadgerStore
	contract.Pinger
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer on the exit path, os.Exit is only called by main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB) holds users and read state for both backends
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithInMemory(config.BadgerInMemory).
		WithLoggingLevel(badger.WARNING)
	if config.BadgerInMemory {
		options = options.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	userRepository := repositories.NewUserRepository(db)
	localStorage := storage.NewLocalStorage(db)

	var members contract.MembershipChecker = access.NewDirectoryChecker(userRepository)
	if config.AllowAllMembers {
		log.Warn("Membership checks disabled, every authenticated user is a member")
		members = access.AllowAll{}
	}

	// 3. Message store backend, only the badger one keeps a local subscriber registry
	store, registry, closeStore, err := openStore(config, log, db, localStorage, members)
	if err != nil {
		return exitRuntime, err
	}
	defer closeStore()

	// 4. Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewSessionMetrics(promRegistry)

	// 5. Supervision
	monitor := connectivity.NewMonitor(log, true)
	sup := workers.NewSupervisor(log, config.RestartInterval).WithMaxRestartDelay(config.MaxBackoff).WithRecorder(metrics)
	sup.Add(workers.NewConnectivityProbeWorker(log, store, monitor, config.ProbeInterval, config.ProbeTimeout))
	if registry != nil {
		sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval, registry, metrics))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 6. HTTP server
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	trackers := readstate.NewTrackers(log, localStorage, nil)
	authService := services.NewAuthService(log, userRepository, tokens)

	wsServer := ws.NewServer(log, tokens, store, monitor, runtime.SystemScheduler{}, trackers, metrics, session.Config{
		BaseBackoff:     config.BaseBackoff,
		MaxBackoff:      config.MaxBackoff,
		EventBufferSize: config.EventBufferSize,
	})
	handler := transport.NewHandler(log, authService, store, store, members, userRepository, trackers)

	routerConfig := transport.RouterConfig{
		Tokens:   tokens,
		Gatherer: promRegistry,
		Pingers:  []contract.Pinger{store},
	}
	if config.DebugInspector {
		log.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://%s/debug/inspect", config.Address()))
		routerConfig.Inspector = internal.InspectHandler(db, nil, func() map[string]any {
			return map[string]any{
				"Backend": config.StoreBackend,
				"Online":  monitor.Online(),
				"Workers": sup.Status(),
				"Time":    time.Now().Format(time.RFC822),
			}
		})
	}

	server := &http.Server{
		Addr:              config.Address(),
		Handler:           transport.NewRouter(log, handler, wsServer, routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr, "backend", config.StoreBackend, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errChan:
		sup.Stop()
		<-supervisorDone
		return exitRuntime, err
	}

	// 8. Graceful shutdown, websocket handlers end with their request context
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "error", err)
	}
	sup.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return exitOK, nil
}

func openStore(config internal.Config, log *slog.Logger, db *badger.DB, localStorage storage.LocalStorage,
	members contract.MembershipChecker) (messageStore, *runtime.Registry, func(), error) {
	switch config.StoreBackend {
	case internal.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		var limit int64
		if config.LimitMessages != nil {
			limit = int64(*config.LimitMessages)
		}
		store := redisstore.New(log, rdb, members, redisstore.Config{SnapshotLimit: limit, HandshakeTimeout: config.ProbeTimeout})
		pingCtx, cancel := context.WithTimeout(context.Background(), config.ProbeTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			log.Warn("Redis is not reachable yet, sessions will start offline", "address", config.RedisAddr, "error", err)
		}
		return store, nil, func() {
			log.Info("Closing Redis client...")
			_ = rdb.Close()
		}, nil
	default:
		repository := repositories.NewMessageRepository(db, log, config.LimitMessages)
		registry := runtime.NewRegistry()
		store := storage.NewBadgerStore(log, repository, registry, members)
		return badgerMessages{BadgerStore: store, Pinger: localStorage}, registry, func() {}, nil
	}
}
