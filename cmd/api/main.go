package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	httpapi "server/internal/http"
	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/notify"
	"server/internal/pipeline"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("api: schema migration failed")
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect redis")
	}
	defer rdb.Close()

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	countries, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip database unavailable, locale falls back to headers")
	}
	if closer, ok := countries.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	targets := repo.NewTargetRepository(pool)
	jobs := repo.NewJobRepository(pool)
	queue := pipeline.NewRedisQueue(rdb)
	broker := notify.NewRedisBroker(rdb, logger)
	coordinator := pipeline.NewCoordinator(targets, jobs, queue, broker, logger, cfg.JobMaxAttempts)

	app := handlers.NewApp(coordinator, broker, store, logger)
	router := httpapi.NewRouter(cfg, app, countries, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}
