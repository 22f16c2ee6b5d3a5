package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"roadsurvey/internal/config"
	"roadsurvey/internal/enrich"
	"roadsurvey/internal/env"
	"roadsurvey/internal/logging"
	"roadsurvey/internal/models"
	"roadsurvey/internal/repository"
	"roadsurvey/internal/service"
	"roadsurvey/internal/storage"
	"roadsurvey/pkg/graceful"
	"roadsurvey/pkg/kafkaclient"
	"roadsurvey/pkg/location"
)

func main() {
	env.LoadEnv()
	cfg := config.Load()

	logger, closer, err := logging.Setup(logging.ParseLevel(cfg.LogLevel), cfg.LogFile)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	databaseURL := env.MustGetEnv("DATABASE_URL")
	if !cfg.MinIO.Configured() {
		logger.Error("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
		os.Exit(1)
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.NewSubmissionRepository(pool, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}
	if stored, err := repo.Count(ctx); err == nil {
		logger.Info("submission table ready", "rows", stored)
	}

	s3Service, err := storage.NewS3Service(cfg.MinIO, logger)
	if err != nil {
		logger.Error("failed to connect to object storage", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	consumer, err := kafkaclient.NewKafkaConsumer(kafkaclient.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
	}, logger)
	if err != nil {
		logger.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}

	geocoder := location.NewClient(
		location.WithBaseURL(cfg.NominatimURL),
		location.WithUserAgent(cfg.NominatimUserAgent),
	)

	pipeline := enrich.NewPipeline(
		enrich.NewStage(geocodeStep(geocoder, logger)),
		enrich.NewStage(storeStep(repo)),
	).WithLogger(logger)

	consumer.StartConsuming(ctx)
	iterator := service.NewIterator(consumer, func(ctx context.Context, bucket, key string) (*models.Submission, error) {
		return s3Service.GetSubmission(ctx, bucket, key)
	}, logger)

	exported := 0
	for obj := range iterator.Objects(ctx) {
		if failed := pipeline.Run(ctx, obj.Data); failed > 0 {
			obj.Done(fmt.Errorf("%d export steps failed", failed))
			continue
		}
		obj.Done(nil)
		exported++
	}

	consumer.Stop()
	if err := iterator.Err(); err != nil {
		logger.Error("exporter stopped, the failed submission will be redelivered on restart", "exported", exported, "error", err)
		os.Exit(1)
	}
	logger.Info("exporter finished", "exported", exported)
}
