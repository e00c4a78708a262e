package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/executor"
	"server/internal/infra"
	"server/internal/notify"
	"server/internal/pipeline"
	"server/internal/providers/audio"
	"server/internal/providers/document"
	"server/internal/providers/genai"
	imageprovider "server/internal/providers/image"
	"server/internal/providers/palette"
	"server/internal/providers/qr"
	textprovider "server/internal/providers/text"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: schema migration failed")
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to connect redis")
	}
	defer rdb.Close()

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Str("model", geminiClient.Model()).Msg("worker: gemini api key missing, using synthetic asset generation")
	}

	targets := repo.NewTargetRepository(pool)
	jobs := repo.NewJobRepository(pool)
	queue := pipeline.NewRedisQueue(rdb)
	broker := notify.NewRedisBroker(rdb, logger)
	coordinator := pipeline.NewCoordinator(targets, jobs, queue, broker, logger, cfg.JobMaxAttempts)

	registry := pipeline.NewRegistry(buildExecutors(cfg, geminiClient, store))
	dispatcher := pipeline.NewDispatcher(queue, jobs, coordinator, registry, logger, cfg.WorkerConcurrency)
	watchdog := pipeline.NewWatchdog(jobs, coordinator, registry, cfg.WatchdogInterval, logger)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker: started")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return dispatcher.Run(groupCtx) })
	group.Go(func() error { return watchdog.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// buildExecutors maps every asset type onto its generator.
func buildExecutors(cfg *infra.Config, client *genai.Client, store *storage.FileStore) map[domain.AssetType]executor.Executor {
	images := imageprovider.New(client, store)
	texts := textprovider.New(client, store)

	return map[domain.AssetType]executor.Executor{
		domain.AssetTypeCover:      images,
		domain.AssetTypeScene1:     images,
		domain.AssetTypeScene2:     images,
		domain.AssetTypeScene3:     images,
		domain.AssetTypeScene4:     images,
		domain.AssetTypeHeadshot:   images,
		domain.AssetTypeBodyshot:   images,
		domain.AssetTypeAudio:      audio.New(client, store, ""),
		domain.AssetTypePDF:        document.New(store),
		domain.AssetTypeQR:         qr.New(store, cfg.ShareBaseURL),
		domain.AssetTypeActivities: texts,
		domain.AssetTypeAppearance: texts,
		domain.AssetTypePalette:    palette.New(store),
	}
}
