package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"noreply@mailqueue.local"`
	TemplateDir  string `envconfig:"TEMPLATE_DIR" default:"templates"`

	// ----------------------------
	// Queue / Workers
	// ----------------------------
	WorkerCount   int `envconfig:"WORKER_COUNT" default:"3"`
	MaxAttempts   int `envconfig:"MAX_ATTEMPTS" default:"3"`
	RateLimit     int `envconfig:"RATE_LIMIT" default:"10"`
	QueueCapacity int `envconfig:"QUEUE_CAPACITY" default:"1024"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
