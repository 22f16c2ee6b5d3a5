package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"roadsurvey/internal/env"
	"roadsurvey/internal/keys"
	"roadsurvey/internal/models"
)

var ErrNotConfigured = errors.New("storage: object storage is not configured")

// Options locates and authenticates against an S3-compatible endpoint.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// OptionsFromEnv reads MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY,
// MINIO_USE_SSL and MINIO_REGION.
func OptionsFromEnv() Options {
	return Options{
		Endpoint:  env.GetEnv("MINIO_ENDPOINT", ""),
		AccessKey: env.GetEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: env.GetEnv("MINIO_SECRET_KEY", ""),
		UseSSL:    env.GetEnvBool("MINIO_USE_SSL", false),
		Region:    env.GetEnv("MINIO_REGION", ""),
	}
}

// Configured reports whether all required fields are set.
func (o Options) Configured() bool {
	return o.Endpoint != "" && o.AccessKey != "" && o.SecretKey != ""
}

// S3Service is a client for S3-compatible storage.
type S3Service struct {
	client *minio.Client
	opts   Options
	logger *slog.Logger
}

// NewS3Service connects to the MinIO endpoint described by opts.
func NewS3Service(opts Options, logger *slog.Logger) (*S3Service, error) {
	if !opts.Configured() {
		return nil, fmt.Errorf("%w: MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required", ErrNotConfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}

	minioClient, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	logger.Info("connected to object storage", "endpoint", opts.Endpoint)
	return &S3Service{client: minioClient, opts: opts, logger: logger}, nil
}

// CreateBucket makes bucketName unless it already exists.
func (s *S3Service) CreateBucket(ctx context.Context, bucketName string, location string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return false, err
		}
		s.logger.Info("created bucket", "bucket", bucketName)
	}
	return true, nil
}

// StoreSubmission archives sub as JSON and returns its object key. An
// already archived submission is left untouched.
func (s *S3Service) StoreSubmission(ctx context.Context, bucketName string, sub *models.Submission) (string, error) {
	objectKey := keys.Submission(sub)

	_, err := s.client.StatObject(ctx, bucketName, objectKey, minio.StatObjectOptions{})
	if err == nil {
		s.logger.Info("submission already archived, ignoring write", "submission", sub.ID, "bucket", bucketName)
		return objectKey, nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("failed to check for existing object: %w", err)
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal submission to JSON: %w", err)
	}

	_, err = s.client.PutObject(
		ctx,
		bucketName,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("failed to store object in S3: %w", err)
	}

	s.logger.Info("archived submission", "submission", sub.ID, "bucket", bucketName, "key", objectKey)
	return objectKey, nil
}

// GetSubmission loads an archived submission.
func (s *S3Service) GetSubmission(ctx context.Context, bucketName string, objectKey string) (*models.Submission, error) {
	object, err := s.client.GetObject(ctx, bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer object.Close()

	var sub models.Submission
	if err := json.NewDecoder(object).Decode(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from stream: %w", err)
	}

	s.logger.Debug("retrieved submission", "submission", sub.ID, "bucket", bucketName, "key", objectKey)
	return &sub, nil
}

// PutPhoto stores an image and returns its object URL.
func (s *S3Service) PutPhoto(ctx context.Context, bucketName, objectKey string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(
		ctx,
		bucketName,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("failed to store photo in S3: %w", err)
	}
	return s.ObjectURL(bucketName, objectKey), nil
}

// ObjectURL is the path-style URL of an object.
func (s *S3Service) ObjectURL(bucketName, objectKey string) string {
	return ObjectURL(s.client.EndpointURL(), bucketName, objectKey)
}

// ObjectURL joins an endpoint, bucket and key into a path-style URL.
func ObjectURL(endpoint *url.URL, bucketName, objectKey string) string {
	u := *endpoint
	u.Path = "/" + bucketName + "/" + objectKey
	return u.String()
}
