// Package repository stores exported survey submissions in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadsurvey/internal/models"
)

var ErrInvalidID = errors.New("repository: submission id is not a uuid")

// DB is the subset of *pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS survey_submissions (
	id              uuid PRIMARY KEY,
	session_id      text        NOT NULL,
	submitted_at    timestamptz NOT NULL,
	name            text        NOT NULL DEFAULT '',
	email           text        NOT NULL DEFAULT '',
	age             integer,
	education_type  text        NOT NULL DEFAULT '',
	location_method text        NOT NULL DEFAULT '',
	latitude        double precision,
	longitude       double precision,
	location_source text,
	address         text,
	data            jsonb       NOT NULL,
	exported_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS survey_submissions_submitted_at_idx ON survey_submissions (submitted_at);
`

const upsertSubmission = `
INSERT INTO survey_submissions (
	id, session_id, submitted_at, name, email, age, education_type,
	location_method, latitude, longitude, location_source, address, data
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	latitude        = EXCLUDED.latitude,
	longitude       = EXCLUDED.longitude,
	location_source = EXCLUDED.location_source,
	address         = COALESCE(EXCLUDED.address, survey_submissions.address),
	data            = EXCLUDED.data,
	exported_at     = now()
`

// SubmissionRepository writes submissions to the survey_submissions table.
type SubmissionRepository struct {
	db     DB
	logger *slog.Logger
}

// NewPool opens a connection pool and checks it with a ping.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return pool, nil
}

func NewSubmissionRepository(db DB, logger *slog.Logger) *SubmissionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionRepository{db: db, logger: logger}
}

// EnsureSchema creates the table and its index when missing.
func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Upsert inserts sub, or refreshes the location, address and data of an
// already exported row.
func (r *SubmissionRepository) Upsert(ctx context.Context, sub *models.Submission) error {
	id, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, sub.ID)
	}

	d := sub.Data
	var lat, lon *float64
	var source, address *string
	if p, ok := d.GPSCoords.Point(); ok {
		lat, lon = &p.Lat, &p.Lon
		source = &d.GPSCoords.Source
	}
	if sub.Address != "" {
		address = &sub.Address
	}
	var age *int
	if d.Age > 0 {
		age = &d.Age
	}

	tag, err := r.db.Exec(ctx, upsertSubmission,
		pgtype.UUID{Bytes: id, Valid: true},
		sub.SessionID,
		sub.SubmittedAt,
		d.Name,
		d.Email,
		age,
		d.EducationType,
		d.LocationMethod,
		lat,
		lon,
		source,
		address,
		d,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert submission %s: %w", sub.ID, err)
	}
	r.logger.Info("exported submission", "submission", sub.ID, "rows", tag.RowsAffected())
	return nil
}

// Count returns the number of exported submissions.
func (r *SubmissionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM survey_submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return n, nil
}
