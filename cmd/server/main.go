package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/subosito/gotenv"

	"github.com/zombar/socialpulse/internal/analysis"
	"github.com/zombar/socialpulse/internal/api"
	"github.com/zombar/socialpulse/internal/config"
	"github.com/zombar/socialpulse/internal/database"
	"github.com/zombar/socialpulse/internal/entities"
	"github.com/zombar/socialpulse/internal/metrics"
	"github.com/zombar/socialpulse/internal/ollama"
	"github.com/zombar/socialpulse/internal/pipeline"
	"github.com/zombar/socialpulse/internal/queue"
	"github.com/zombar/socialpulse/internal/tracing"
	"github.com/zombar/socialpulse/pkg/logging"
)

func main() {
	// Optional .env for local development; deployments set env directly
	_ = gotenv.Load()

	logger := newLogger()
	slog.SetDefault(logger)

	logger.Info("socialpulse service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := tracing.InitTracer("socialpulse")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	// Get default values from environment variables, with fallbacks
	portDefault := getEnv("PORT", "8080")
	dbPathDefault := getEnv("DB_PATH", "socialpulse.db")
	redisAddrDefault := getEnv("REDIS_ADDR", "localhost:6379")
	configPathDefault := getEnv("CONFIG_PATH", "")
	ollamaURLDefault := getEnv("OLLAMA_URL", "http://localhost:11434")
	ollamaModelDefault := getEnv("OLLAMA_MODEL", "gpt-oss:20b")
	useOllamaDefault := getEnvBool("USE_OLLAMA", false)
	concurrencyDefault := getEnvInt("WORKER_CONCURRENCY", 5)

	var (
		port        = flag.String("port", portDefault, "Server port (env: PORT)")
		dbPath      = flag.String("db", dbPathDefault, "Database file path (env: DB_PATH)")
		redisAddr   = flag.String("redis", redisAddrDefault, "Redis address for the task queue (env: REDIS_ADDR)")
		configPath  = flag.String("config", configPathDefault, "Pipeline/company config file (env: CONFIG_PATH)")
		ollamaURL   = flag.String("ollama-url", ollamaURLDefault, "Ollama API URL (env: OLLAMA_URL)")
		ollamaModel = flag.String("ollama-model", ollamaModelDefault, "Ollama model to use (env: OLLAMA_MODEL)")
		useOllama   = flag.Bool("use-ollama", useOllamaDefault, "Enable Ollama for model-backed entity extraction (env: USE_OLLAMA)")
		concurrency = flag.Int("concurrency", concurrencyDefault, "Queue worker concurrency (env: WORKER_CONCURRENCY)")
	)
	flag.Parse()

	// Load analysis configuration: defaults, then yaml file, then environment
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "config_path", *configPath)
		os.Exit(1)
	}
	registry := cfg.Registry()

	// Initialize database
	db, err := database.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "database_path", *dbPath)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database metrics
	dbMetrics := metrics.NewDatabaseMetrics("socialpulse")
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			dbMetrics.UpdateDBStats(db.Conn().Stats())
		}
	}()
	logger.Info("database metrics initialized")

	// Build the analysis pipeline; Ollama upgrades entity recognition when enabled
	var opts []pipeline.Option
	if *useOllama {
		ollamaClient, err := ollama.New(*ollamaURL, *ollamaModel)
		if err != nil {
			logger.Warn("failed to initialize Ollama client, falling back to rule-based entity recognition",
				"error", err,
				"ollama_url", *ollamaURL,
				"ollama_model", *ollamaModel,
			)
		} else {
			logger.Info("Ollama client initialized", "model", *ollamaModel, "url", *ollamaURL)
			opts = append(opts, pipeline.WithEntityRecognizer(entities.NewWithOllama(ollamaClient)))
		}
	} else {
		logger.Info("Ollama disabled, using rule-based entity recognition")
	}

	pipe, err := pipeline.New(cfg.Pipeline, opts...)
	if err != nil {
		logger.Error("failed to build analysis pipeline", "error", err)
		os.Exit(1)
	}

	service := analysis.New(pipe, registry)

	// Queue client enqueues tasks, the worker processes them in this process
	queueClient := queue.NewClient(queue.ClientConfig{RedisAddr: *redisAddr})
	defer queueClient.Close()

	worker := queue.NewWorker(queue.WorkerConfig{
		RedisAddr:   *redisAddr,
		Concurrency: *concurrency,
	}, db, service, registry)

	go func() {
		if err := worker.Start(); err != nil {
			logger.Error("queue worker failed", "error", err)
			os.Exit(1)
		}
	}()

	// Initialize API handler
	apiHandler := api.NewHandler(db, service, queueClient)

	// Wrap handler with middleware chain: HTTP logging -> tracing -> handlers
	handler := logging.HTTPLoggingMiddleware(logger)(
		tracing.HTTPMiddleware("socialpulse")(apiHandler),
	)

	// Create server; write timeout leaves room for model-backed entity extraction
	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("socialpulse service starting",
			"port", *port,
			"database", *dbPath,
			"redis", *redisAddr,
			"companies", len(registry.Companies()),
			"ollama_enabled", *useOllama,
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	worker.Shutdown()

	logger.Info("server stopped")
}

// newLogger builds the process logger: JSON in production, tint when LOG_PRETTY is set
func newLogger() *slog.Logger {
	if getEnvBool("LOG_PRETTY", false) {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
