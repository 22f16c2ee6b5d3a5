// Package config collects the settings of the surveyor server and the
// exporter from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"roadsurvey/internal/env"
	"roadsurvey/internal/storage"
)

// Image hosts selectable with IMAGE_HOST.
const (
	ImageHostImgBB = "imgbb"
	ImageHostS3    = "s3"
	ImageHostNone  = "none"
)

// DefaultCDNPrefix serves the study photos through an image CDN.
const DefaultCDNPrefix = "https://7fsm51mk.dev.cdn.imgeng.in/"

type Config struct {
	Addr string

	SessionSecret string
	SessionTTL    time.Duration
	SessionMax    int
	SecureCookie  bool

	BankFile string

	ImageHost     string
	ImgBBAPIKey   string
	ImgBBEndpoint string
	ImgBBRPS      float64
	CDNPrefix     string
	MaxUploadMB   int

	MinIO        storage.Options
	SurveyBucket string
	PhotoBucket  string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	DatabaseURL string

	NominatimURL       string
	NominatimUserAgent string

	LogFile  string
	LogLevel string
}

// Load reads the environment. Call env.LoadEnv first to pick up .env.
func Load() *Config {
	c := &Config{
		Addr: env.GetEnv("SURVEY_ADDR", ":8501"),

		SessionSecret: env.GetEnv("SESSION_SECRET", ""),
		SessionTTL:    env.GetEnvDuration("SESSION_TTL", 2*time.Hour),
		SessionMax:    env.GetEnvInt("SESSION_MAX", 10000),
		SecureCookie:  env.GetEnvBool("SESSION_SECURE_COOKIE", false),

		BankFile: env.GetEnv("SURVEY_BANK_FILE", ""),

		ImgBBAPIKey:   env.GetEnv("IMGBB_API_KEY", ""),
		ImgBBEndpoint: env.GetEnv("IMGBB_ENDPOINT", "https://api.imgbb.com/1/upload"),
		ImgBBRPS:      env.GetEnvFloat("IMGBB_RPS", 2),
		CDNPrefix:     env.GetEnv("IMAGE_CDN_PREFIX", DefaultCDNPrefix),
		MaxUploadMB:   env.GetEnvInt("MAX_UPLOAD_MB", 16),

		MinIO:        storage.OptionsFromEnv(),
		SurveyBucket: env.GetEnv("SURVEY_BUCKET", "survey-submissions"),
		PhotoBucket:  env.GetEnv("PHOTO_BUCKET", "survey-photos"),

		KafkaBrokers: env.GetEnvList("KAFKA_BROKER", []string{"localhost:9092"}),
		KafkaTopic:   env.GetEnv("KAFKA_TOPIC", "survey-submissions"),
		KafkaGroupID: env.GetEnv("KAFKA_GROUP_ID", "survey-exporter"),

		DatabaseURL: env.GetEnv("DATABASE_URL", ""),

		NominatimURL:       env.GetEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: env.GetEnv("NOMINATIM_USER_AGENT", "roadsurvey/1.0 (road distress survey exporter)"),

		LogFile:  env.GetEnv("LOG_FILE", ""),
		LogLevel: strings.ToLower(env.GetEnv("LOG_LEVEL", "info")),
	}

	c.ImageHost = strings.ToLower(env.GetEnv("IMAGE_HOST", ""))
	if c.ImageHost == "" {
		switch {
		case c.ImgBBAPIKey != "":
			c.ImageHost = ImageHostImgBB
		case c.MinIO.Configured():
			c.ImageHost = ImageHostS3
		default:
			c.ImageHost = ImageHostNone
		}
	}
	return c
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.ImageHost {
	case ImageHostImgBB:
		if c.ImgBBAPIKey == "" {
			return fmt.Errorf("config: IMAGE_HOST=imgbb requires IMGBB_API_KEY")
		}
	case ImageHostS3:
		if !c.MinIO.Configured() {
			return fmt.Errorf("config: IMAGE_HOST=s3 requires MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	case ImageHostNone:
	default:
		return fmt.Errorf("config: unknown IMAGE_HOST %q", c.ImageHost)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("config: MAX_UPLOAD_MB must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	return nil
}

// MaxUploadBytes is the request body limit for page posts.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
