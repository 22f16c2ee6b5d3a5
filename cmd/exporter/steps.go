package main

import (
	"context"
	"errors"
	"log/slog"

	"roadsurvey/internal/enrich"
	"roadsurvey/internal/models"
	"roadsurvey/pkg/location"
)

// Geocoder resolves a point to an address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*location.Location, error)
}

// SubmissionStore persists an exported submission.
type SubmissionStore interface {
	Upsert(ctx context.Context, sub *models.Submission) error
}

// geocodeStep fills Address for submissions that carry a GPS fix. The
// address is optional, so lookup errors are logged and the row is still
// stored without it.
func geocodeStep(g Geocoder, logger *slog.Logger) enrich.Step[models.Submission] {
	return enrich.NewStep("geocode", func(ctx context.Context, sub *models.Submission) error {
		p, ok := sub.Data.GPSCoords.Point()
		if !ok || sub.Address != "" {
			return nil
		}
		loc, err := g.Reverse(ctx, p.Lat, p.Lon)
		if errors.Is(err, location.ErrNotFound) {
			logger.Info("no address for submission", "submission", sub.ID)
			return nil
		}
		if err != nil {
			logger.Warn("reverse geocoding failed", "submission", sub.ID, "error", err)
			return nil
		}
		sub.Address = loc.DisplayName
		return nil
	})
}

func storeStep(s SubmissionStore) enrich.Step[models.Submission] {
	return enrich.NewStep("store", func(ctx context.Context, sub *models.Submission) error {
		return s.Upsert(ctx, sub)
	})
}
