package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"roadsurvey/internal/config"
	"roadsurvey/internal/imghost"
	"roadsurvey/internal/session"
	"roadsurvey/internal/storage"
	"roadsurvey/internal/survey"
	"roadsurvey/internal/web"
	"roadsurvey/pkg/graceful"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the survey web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, cancel := graceful.Context(cmd.Context())
		defer cancel()
		return serve(ctx, cfg, slog.Default())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides SURVEY_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	bank, err := survey.LoadBank(cfg.BankFile)
	if err != nil {
		return err
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}
	store, err := session.NewStore(bank, session.Options{
		Secret:       secret,
		TTL:          cfg.SessionTTL,
		MaxSessions:  cfg.SessionMax,
		SecureCookie: cfg.SecureCookie,
	}, logger)
	if err != nil {
		return err
	}

	var s3 *storage.S3Service
	if cfg.MinIO.Configured() {
		s3, err = storage.NewS3Service(cfg.MinIO, logger)
		if err != nil {
			return err
		}
		for _, bucket := range []string{cfg.SurveyBucket, cfg.PhotoBucket} {
			if _, err := s3.CreateBucket(ctx, bucket, cfg.MinIO.Region); err != nil {
				return fmt.Errorf("prepare bucket %s: %w", bucket, err)
			}
		}
	} else {
		logger.Info("object storage not configured, submissions are only logged")
	}

	uploader, err := newUploader(cfg, s3)
	if err != nil {
		return err
	}

	var archiver web.Archiver
	if s3 != nil {
		archiver = s3
	}
	h, err := web.NewHandler(bank, uploader,
		web.NewSubmissionPipeline(logger, archiver, cfg.SurveyBucket),
		web.Options{CDNPrefix: cfg.CDNPrefix, MaxUploadBytes: cfg.MaxUploadBytes()},
		logger,
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewRouter(h, store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("survey server listening", "addr", cfg.Addr, "image_host", cfg.ImageHost)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down survey server")
	return srv.Shutdown(shutdownCtx)
}

func newUploader(cfg *config.Config, s3 *storage.S3Service) (imghost.Uploader, error) {
	switch cfg.ImageHost {
	case config.ImageHostImgBB:
		return imghost.NewImgBB(cfg.ImgBBAPIKey,
			imghost.WithEndpoint(cfg.ImgBBEndpoint),
			imghost.WithRateLimit(cfg.ImgBBRPS, max(1, int(cfg.ImgBBRPS))),
		), nil
	case config.ImageHostS3:
		if s3 == nil {
			return nil, errors.New("IMAGE_HOST=s3 requires object storage")
		}
		return imghost.NewObjectStore(s3, cfg.PhotoBucket), nil
	}
	return imghost.Disabled{}, nil
}
