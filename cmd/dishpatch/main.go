package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dishpatch/dishpatch/config"
	"github.com/dishpatch/dishpatch/pkg/activity"
	"github.com/dishpatch/dishpatch/pkg/api"
	"github.com/dishpatch/dishpatch/pkg/api/events"
	"github.com/dishpatch/dishpatch/pkg/api/handlers"
	"github.com/dishpatch/dishpatch/pkg/engine"
	"github.com/dishpatch/dishpatch/pkg/logger"
	"github.com/dishpatch/dishpatch/pkg/metrics"
	"github.com/dishpatch/dishpatch/pkg/notify"
	"github.com/dishpatch/dishpatch/pkg/order"
	"github.com/dishpatch/dishpatch/pkg/payments"
	"github.com/dishpatch/dishpatch/pkg/signal"
	"github.com/dishpatch/dishpatch/pkg/storage"
	"github.com/dishpatch/dishpatch/pkg/storage/badger"
	"github.com/dishpatch/dishpatch/pkg/storage/memory"
	"github.com/dishpatch/dishpatch/pkg/telemetry/tracing"
	"github.com/dishpatch/dishpatch/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Dishpatch",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Watch the config file for hot-reloadable changes
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, config.NewLoader())
		if err != nil {
			log.Warn("Config watcher unavailable", "error", err)
		} else {
			current := config.ExtractHotReloadable(cfg)
			watcher.OnChange(func(updated *config.Config) {
				next := config.ExtractHotReloadable(updated)
				if !current.Changed(next) {
					return
				}
				if next.LogLevel != current.LogLevel {
					if lvl, ok := log.(interface{ SetLevel(logger.Level) }); ok {
						lvl.SetLevel(logger.ParseLevel(next.LogLevel))
						log.Info("Log level updated", "level", next.LogLevel)
					}
				}
				current = next
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	// Initialize storage backend
	var store storage.Storage
	switch cfg.Storage.Type {
	case "badger":
		badgerCfg := &badger.Config{
			Path:              cfg.Storage.Badger.Path,
			SyncWrites:        cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Storage.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Storage.Badger.NumVersionsToKeep,
		}
		store, err = badger.NewBadgerStorage(badgerCfg)
		if err != nil {
			log.Error("Failed to create Badger storage", "error", err)
			os.Exit(1)
		}
		log.Info("Initialized Badger storage", "path", badgerCfg.Path)
	case "memory":
		store = memory.NewMemoryStorage()
		log.Info("Initialized memory storage")
	default:
		store = memory.NewMemoryStorage()
		log.Warn("Unknown storage type, using memory storage", "type", cfg.Storage.Type)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	// Initialize metrics manager
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)
	signal.SetMetricsRecorder(metricsManager)

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Initialize the signal bus
	var bus signal.Bus
	var redisClient *redis.Client
	switch cfg.Signal.Transport {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Signal.Redis.Address,
			Password: cfg.Signal.Redis.Password,
			DB:       cfg.Signal.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "addr", cfg.Signal.Redis.Address, "error", err)
			os.Exit(1)
		}
		bus = signal.NewRedisBus(redisClient, cfg.Signal.Redis.ChannelPrefix, cfg.Signal.BufferSize)
		log.Info("Initialized Redis signal bus", "addr", cfg.Signal.Redis.Address)
	default:
		bus = signal.NewLocalBus(cfg.Signal.BufferSize)
		log.Info("Initialized local signal bus", "buffer_size", cfg.Signal.BufferSize)
	}

	// Initialize the notification sender
	var sender notify.Sender
	var kafkaNotifier *notify.KafkaNotifier
	switch cfg.Notify.Type {
	case "kafka":
		kafkaNotifier = notify.NewKafkaNotifier(notify.KafkaConfig{
			Brokers:      cfg.Notify.Kafka.Brokers,
			Topic:        cfg.Notify.Kafka.Topic,
			WriteTimeout: cfg.Notify.Kafka.WriteTimeout,
		}, log)
		sender = kafkaNotifier
		log.Info("Initialized Kafka notifier", "topic", cfg.Notify.Kafka.Topic)
	default:
		sender = notify.NewLogNotifier(log)
		log.Info("Initialized log notifier")
	}
	if cfg.Notify.RateLimit.Enabled {
		sender = notify.NewRateLimited(sender, cfg.Notify.RateLimit.PerSecond, cfg.Notify.RateLimit.Burst)
	}

	// Initialize the payment gateway client
	gateway := payments.NewClient(payments.Config{
		BaseURL: cfg.Payment.BaseURL,
		Timeout: cfg.Payment.Timeout,
	}, log)

	// Register saga activities
	registry := activity.NewRegistry()
	policy := order.ActivityPolicy{
		StartToCloseTimeout: cfg.Saga.Activity.StartToCloseTimeout,
		RetryInterval:       cfg.Saga.Activity.RetryInterval,
		MaximumAttempts:     cfg.Saga.Activity.MaximumAttempts,
	}
	if err := order.RegisterActivities(registry, gateway, sender, policy); err != nil {
		log.Error("Failed to register activities", "error", err)
		os.Exit(1)
	}
	executor := activity.NewExecutor(registry, log, activity.WithMetrics(metricsManager))

	// Initialize and start the saga engine
	eng := engine.New(store, bus, executor, log, engine.WithMetrics(metricsManager))
	if err := eng.Start(ctx); err != nil {
		log.Error("Failed to start engine", "error", err)
		os.Exit(1)
	}

	// Initialize the order service with the event broadcaster
	broadcaster := events.NewBroadcaster()
	timings := order.Timings{
		PickupWindow:   cfg.Saga.PickupWindow,
		DeliveryWindow: cfg.Saga.DeliveryWindow,
		ChargeGrace:    cfg.Saga.ChargeGrace,
		FeedbackDelay:  cfg.Saga.FeedbackDelay,
	}
	service := order.NewService(eng, store, bus, timings, log,
		order.WithEventBroadcaster(broadcaster),
		order.WithMetrics(metricsManager),
	)

	// Resume sagas stranded by the previous process
	resumed, err := service.Resume(ctx)
	if err != nil {
		log.Error("Failed to resume stranded orders", "error", err)
		os.Exit(1)
	}
	if resumed > 0 {
		log.Info("Resumed stranded orders", "count", resumed)
	}

	// Initialize HTTP server with handlers
	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		MaxConnections: cfg.Server.WebSocket.MaxConnections,
		PingInterval:   cfg.Server.WebSocket.PingInterval,
		PongTimeout:    cfg.Server.WebSocket.PongTimeout,
	})

	// Bridge order events to websocket subscribers
	eventCh := broadcaster.Subscribe(64)
	go func() {
		for event := range eventCh {
			if err := wsHandler.Broadcast(handlers.EventMessage{
				Type:      event.Type,
				Timestamp: event.Timestamp,
				Payload:   event.Payload,
			}); err != nil {
				log.Warn("Event broadcast failed", "type", event.Type, "error", err)
			}
		}
	}()

	apiHandlers := &api.Handlers{
		Order:     handlers.NewOrderHandler(service, log),
		Catalog:   handlers.NewCatalogHandler(),
		Health:    handlers.NewHealthHandler(eng, service),
		WebSocket: wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Start HTTP server in a separate goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Dishpatch is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first
	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}
	wsHandler.Close()

	// Stop the engine gracefully.
	log.Info("Stopping engine")
	if err := eng.Stop(shutdownCtx); err != nil {
		log.Error("Error during engine shutdown", "error", err)
	}
	broadcaster.Close()

	if err := bus.Close(); err != nil {
		log.Error("Error closing signal bus", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", "error", err)
		}
	}
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			log.Error("Error closing Kafka notifier", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Dishpatch stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Dishpatch - Order Fulfillment Saga Service\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Dishpatch - Durable order fulfillment sagas over a signal-driven engine\n\n")
	fmt.Printf("Usage: dishpatch [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  dishpatch                                 # Run with default config\n")
	fmt.Printf("  dishpatch -config config.yaml             # Use specific config file\n")
	fmt.Printf("  dishpatch -port 9090 -log-level debug     # Override specific options\n")
	fmt.Printf("  dishpatch -version                        # Print version info\n")
}
