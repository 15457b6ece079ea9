package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pharmunit/config"
	"pharmunit/database"
	"pharmunit/loader"
	"pharmunit/packaging"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config file. Using defaults.")
		cfg = config.Defaults()
	}
	setupLogger(cfg)

	log.Info().Str("path", cfg.DatabasePath).Msg("Connecting to database...")
	dbConn, err := sqlx.Open("sqlite3", cfg.DatabasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatal().Err(err).Msg("db open error")
	}
	defer dbConn.Close()

	if err := loader.InitDatabase(dbConn); err != nil {
		log.Fatal().Err(err).Msg("Database initialization failed")
	}
	log.Info().Msg("Database initialization complete.")

	svc := packaging.NewService(database.NewPackageUnitStore(dbConn), log.Logger)

	if cfg.UnitImportFolderPath != "" {
		results, err := loader.ImportFolder(context.Background(), svc, cfg.UnitImportFolderPath)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to import unit csv folder. Continuing without it.")
		} else {
			log.Info().Int("files", len(results)).Msg("Unit csv folder imported.")
		}
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, svc)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Starting server on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server start error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

// setupLogger は development ではコンソール出力、それ以外は JSON 出力にします。
func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Environment != "development" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
