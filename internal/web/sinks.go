package web

import (
	"context"
	"encoding/json"
	"log/slog"

	"roadsurvey/internal/enrich"
	"roadsurvey/internal/models"
)

// Archiver stores a submission and returns its object key.
type Archiver interface {
	StoreSubmission(ctx context.Context, bucketName string, sub *models.Submission) (string, error)
}

// LogSink writes the collected mapping to the log.
func LogSink(logger *slog.Logger) enrich.Step[models.Submission] {
	return enrich.NewStep("log", func(_ context.Context, sub *models.Submission) error {
		data, err := json.Marshal(sub.Data)
		if err != nil {
			return err
		}
		logger.Info("survey submitted",
			"submission", sub.ID,
			"session", sub.SessionID,
			"data", string(data),
		)
		return nil
	})
}

// ArchiveSink stores the submission as a JSON object in bucket.
func ArchiveSink(a Archiver, bucket string) enrich.Step[models.Submission] {
	return enrich.NewStep("archive", func(ctx context.Context, sub *models.Submission) error {
		_, err := a.StoreSubmission(ctx, bucket, sub)
		return err
	})
}

// NewSubmissionPipeline fans a submission out to the log and, when
// archiver is not nil, to the archive bucket.
func NewSubmissionPipeline(logger *slog.Logger, archiver Archiver, bucket string) *enrich.Pipeline[models.Submission] {
	steps := []enrich.Step[models.Submission]{LogSink(logger)}
	if archiver != nil {
		steps = append(steps, ArchiveSink(archiver, bucket))
	}
	return enrich.NewPipeline(enrich.NewStage(steps...)).WithLogger(logger)
}
