package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/dunning/internal/api"
	"greendrake/dunning/internal/api/handlers"
	"greendrake/dunning/internal/cache"
	"greendrake/dunning/internal/channels"
	"greendrake/dunning/internal/channels/email"
	"greendrake/dunning/internal/channels/mock"
	"greendrake/dunning/internal/channels/whatsapp"
	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/dunning"
	"greendrake/dunning/internal/logger"
	"greendrake/dunning/internal/services"
	"greendrake/dunning/internal/storage"
	"greendrake/dunning/internal/tasks"
)

var (
	runMode = flag.String("m", "all", "Run mode: 'api' (service API), 'bg' (worker + scheduler), 'once' (single run, prints the summary), 'all' (default)")
	dryRun  = flag.Bool("dry-run", false, "With -m once: select and render without sending or writing")
	orgID   = flag.String("org", "", "With -m once: restrict the run to one organization")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logr := logger.Get()

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		logr.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			logr.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		logr.Warn().Err(err).Msg("Failed to ensure MongoDB indexes")
	}
	cancelIndex()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logr.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			logr.Error().Err(err).Msg("Error disconnecting from Redis")
		}
	}()

	engine := buildEngine(cfg, mongoDb, redisClient)

	reportStore, err := storage.NewS3ReportStore(cfg)
	if err != nil {
		logr.Fatal().Err(err).Msg("Failed to initialize S3 report store")
	}

	if cfg.RunMode == "once" {
		runOnce(engine, reportStore)
		return
	}

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	taskProcessor := tasks.NewTaskProcessor(cfg, engine, reportStore)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)
	serverCtx, cancelServers := context.WithCancel(context.Background())
	defer cancelServers()

	// Start Service API (always runs)
	jsonApiHandler := handlers.NewJsonApiHandler(cfg, redisClient, taskClient, engine, services.NewAuditService(mongoDb), shutdownChan)
	serviceSrv := &http.Server{
		Addr:              ":" + cfg.ServiceApiPort,
		Handler:           api.SetupServiceRouter(serverCtx, cfg, jsonApiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logr.Info().Str("port", cfg.ServiceApiPort).Msg("Service API listening")
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal().Err(err).Msg("Service API ListenAndServe error")
		}
		logr.Info().Msg("Service API server stopped")
	}()

	var backgroundTaskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	logr.Info().Str("mode", cfg.RunMode).Msg("Starting application")

	bgMode := func() {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor)
		if err := srv.Start(mux); err != nil {
			logr.Fatal().Err(err).Msg("Background task server error")
		}
		backgroundTaskSrv = srv

		scheduler, err = tasks.NewScheduler(redisClient, cfg)
		if err != nil {
			logr.Fatal().Err(err).Msg("Failed to set up dunning scheduler")
		}
		if err := scheduler.Start(); err != nil {
			logr.Fatal().Err(err).Msg("Failed to start dunning scheduler")
		}
		logr.Info().Str("cron", cfg.DunningCron).Str("timezone", cfg.DunningTimezone).Msg("Background worker and scheduler started")
	}

	switch cfg.RunMode {
	case "api":
	case "bg", "all":
		bgMode()
	default:
		logr.Fatal().Str("mode", cfg.RunMode).Msg("Invalid run mode")
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logr.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")
	case <-shutdownChan:
		logr.Info().Msg("Shutdown requested via Service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logr.Error().Err(err).Msg("Service API server shutdown error")
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}
	cancelServers()

	wg.Wait()
	logr.Info().Msg("Server gracefully stopped")
}

// buildEngine wires the engine's stores and senders. MOCK_SERVICES swaps both
// providers for Redis sinks.
func buildEngine(cfg *config.Config, mongoDb *mongo.Database, rdb *redis.Client) *dunning.Engine {
	var whatsappSender, emailSender channels.Sender
	if cfg.MockServices {
		logger.Get().Info().Msg("MOCK_SERVICES enabled: reminders are stored in Redis")
		whatsappSender = mock.NewRedisSink(rdb, config.ChannelWhatsApp)
		emailSender = mock.NewRedisSink(rdb, config.ChannelEmail)
	} else {
		whatsappSender = whatsapp.NewSender(cfg)
		emailSender = email.NewSender(cfg)
	}

	var idempotency services.IIdempotencyStore
	switch cfg.DunningIdempotencyBackend {
	case "redis":
		idempotency = services.NewRedisIdempotencyStore(rdb, cfg.DunningProcessedKeyTTL)
	default:
		idempotency = services.NewMongoIdempotencyStore(mongoDb)
	}

	return dunning.NewEngine(cfg, dunning.Deps{
		Invoices:    services.NewInvoiceService(mongoDb, cfg),
		Orgs:        services.NewOrgService(mongoDb, cfg),
		Idempotency: idempotency,
		Audit:       services.NewAuditService(mongoDb),
		RunLock:     services.NewRunLock(rdb, cfg.DunningRunLockTTL),
		WhatsApp:    whatsappSender,
		Email:       emailSender,
	})
}

// runOnce performs a single synchronous run and prints the summary as JSON.
func runOnce(engine *dunning.Engine, reports storage.IReportStore) {
	logr := logger.Get()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := engine.Run(ctx, dunning.RunOptions{OrgID: *orgID, DryRun: *dryRun})

	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		logr.Error().Err(err).Msg("Failed to marshal run summary")
		return
	}
	os.Stdout.Write(append(body, '\n'))

	if reports != nil && !res.DryRun {
		key, err := reports.PutRunReport(ctx, res.RunID, res.StartedAt, body)
		if err != nil {
			logr.Warn().Err(err).Msg("Failed to archive run report")
			return
		}
		logr.Info().Str("key", key).Msg("Run report archived")
	}
}
