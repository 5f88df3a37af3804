// Command server runs the check-in station: an offline-first terminal that
// mirrors attendee data from a central master, decides scans locally, and
// reconciles deferred uploads in the background.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-checkin-station/internal/cluster"
	"github.com/tbourn/go-checkin-station/internal/config"
	httpapi "github.com/tbourn/go-checkin-station/internal/http"
	"github.com/tbourn/go-checkin-station/internal/master"
	"github.com/tbourn/go-checkin-station/internal/notify"
	"github.com/tbourn/go-checkin-station/internal/observability"
	"github.com/tbourn/go-checkin-station/internal/printing"
	"github.com/tbourn/go-checkin-station/internal/repo"
	"github.com/tbourn/go-checkin-station/internal/services"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot initialize tracing")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("cannot open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("cannot migrate schema")
	}

	// Collaborators
	masterClient := master.New(cfg.Master, log.Logger)
	coordNode := cluster.NewStandalone()
	printer := printing.NewLogPrinter(log.Logger)
	bus := &notify.Bus{}

	// Services
	syncSvc := services.NewSyncService(db, masterClient, log.Logger)
	syncSvc.BatchSize = cfg.Sync.BatchSize

	checkInSvc := &services.CheckInService{
		DB:      db,
		Master:  masterClient,
		Cluster: coordNode,
		Printer: printer,
		Bus:     bus,
		Syncer:  syncSvc,
		Log:     log.With().Str("component", "checkin").Logger(),
	}

	uploadSvc := &services.UploadService{
		DB:      db,
		Checker: checkInSvc,
		Log:     log.With().Str("component", "upload").Logger(),
	}

	coordinator := &services.Coordinator{
		DB:           db,
		Master:       masterClient,
		Cluster:      coordNode,
		Syncer:       syncSvc,
		Log:          log.With().Str("component", "coordinator").Logger(),
		Interval:     cfg.Sync.Interval,
		InitialDelay: cfg.Sync.InitialDelay,
		FollowerPoll: cfg.Sync.FollowerPoll,
	}

	// Startup sync protocol, then background loops.
	if err := coordinator.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("startup synchronization aborted")
	}
	go uploadSvc.Run(ctx, cfg.Sync.UploadInterval)

	// HTTP transport
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Services{
		CheckIn: checkInSvc,
		ScanLog: checkInSvc,
		Sync:    coordinator,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("station listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// setupLogging configures the global zerolog logger from configuration.
func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
