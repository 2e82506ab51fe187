package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tommypurcell/autoscape-api/internal/api"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
	"github.com/tommypurcell/autoscape-api/internal/core/service"
	"github.com/tommypurcell/autoscape-api/internal/infrastructure/config"
	appmongo "github.com/tommypurcell/autoscape-api/internal/infrastructure/db/mongo"
	appredis "github.com/tommypurcell/autoscape-api/internal/infrastructure/db/redis"
	"github.com/tommypurcell/autoscape-api/internal/infrastructure/generation"
	"github.com/tommypurcell/autoscape-api/internal/infrastructure/queue"
	"github.com/tommypurcell/autoscape-api/internal/infrastructure/rag"
	"github.com/tommypurcell/autoscape-api/pkg/logger"
)

// @title         AutoScape API
// @version       1.0
// @description   AI landscape design generation with credit-based metering.
//
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---
	mongoClient, db, err := appmongo.Connect(ctx, appmongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	rdb, err := appredis.Connect(ctx, appredis.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Repositories ---
	balanceRepo := appmongo.NewBalanceRepository(db)
	reservationRepo := appmongo.NewReservationRepository(db)
	designRepo := appmongo.NewDesignRepository(db)
	authRepo := appmongo.NewAuthRepository(db)

	for name, ensure := range map[string]func(context.Context) error{
		"designs":      designRepo.EnsureIndexes,
		"reservations": reservationRepo.EnsureIndexes,
		"users":        authRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatal().Err(err).Str("collection", name).Msg("index creation failed")
		}
	}

	anonGate := appredis.NewAnonymousGate(rdb, cfg.Credits.AnonAllowance)
	handoff := appredis.NewHandoffStore(rdb)

	// --- External services ---
	freepik := generation.NewFreepikClient(cfg.Freepik.BaseURL, cfg.Freepik.APIKey, log)

	var analyzer ports.YardAnalyzer
	if cfg.OpenAI.APIKey != "" {
		analyzer = generation.NewOpenAIAnalyzer(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		log.Warn().Msg("no OpenAI key configured, yard analysis disabled")
	}

	var catalog ports.PlantCatalog
	if cfg.Weaviate.Host != "" {
		catalog, err = rag.NewPlantCatalog(cfg.Weaviate.Host, cfg.Weaviate.Scheme)
		if err != nil {
			log.Fatal().Err(err).Msg("weaviate client failed")
		}
	} else {
		log.Warn().Msg("no Weaviate host configured, plant catalog disabled")
	}

	// --- Core services ---
	notifier := service.NewBalanceBroker()
	ledger := service.NewLedgerService(balanceRepo, anonGate, reservationRepo, notifier, log)
	estimator := service.NewEstimator(catalog, log)
	designs := service.NewDesignService(ledger, freepik, analyzer, estimator, designRepo, handoff, cfg.Generation.Timeout, cfg.Generation.HandoffTTL, log)
	resolver := service.NewResolverService(designRepo, handoff, log)
	authService := service.NewAuthService(authRepo, ledger, cfg.JWTSecret, 24*time.Hour, cfg.Credits.SignupGrant)

	videos := service.NewVideoService(designRepo, generation.NewVideoClient(freepik), log)
	dispatcher := queue.NewDispatcher(cfg.Generation.VideoWorkers, videos, log)
	dispatcher.Start(ctx)

	// --- HTTP server ---
	e := api.NewRouter(api.Deps{
		DB:        db,
		Redis:     rdb,
		JWTSecret: cfg.JWTSecret,
		Auth:      authService,
		Designs:   designs,
		Resolver:  resolver,
		Ledger:    ledger,
		Notifier:  notifier,
		Videos:    dispatcher,
		Log:       log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
