package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPAddr     string        `envconfig:"HTTP_ADDR" default:":8080"`
	DBPath       string        `envconfig:"DB_PATH" default:"./data/notifier.db"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	DefaultTZ    string        `envconfig:"DEFAULT_TZ" default:"America/Los_Angeles"`
	ScanInterval time.Duration `envconfig:"SCAN_INTERVAL" default:"30m"`

	// Delivery provider (transactional email API).
	BrevoAPIKey  string        `envconfig:"BREVO_API_KEY"`
	BrevoBaseURL string        `envconfig:"BREVO_BASE_URL" default:"https://api.brevo.com"`
	SenderEmail  string        `envconfig:"SENDER_EMAIL"`
	SenderName   string        `envconfig:"SENDER_NAME" default:"Pulse"`
	ReplyToEmail string        `envconfig:"REPLY_TO_EMAIL"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
