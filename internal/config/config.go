package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all process configuration, read from the environment.
type Config struct {
	Port      string `env:"HABITLOOP_PORT" envDefault:"8080"`
	BaseURL   string `env:"HABITLOOP_BASE_URL" envDefault:"http://localhost:8080"`
	DBPath    string `env:"HABITLOOP_DB_PATH" envDefault:"habitloop.db"`
	DataDir   string `env:"HABITLOOP_DATA_DIR" envDefault:"."`
	LogLevel  string `env:"HABITLOOP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"HABITLOOP_LOG_FORMAT" envDefault:"text"`

	SecureCookies bool `env:"HABITLOOP_SECURE_COOKIES" envDefault:"false"`

	VAPIDPublicKey  string `env:"HABITLOOP_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"HABITLOOP_VAPID_PRIVATE_KEY"`
	NotifyBusSize   int    `env:"HABITLOOP_NOTIFY_BUS_SIZE" envDefault:"256"`

	EmailServerToken string `env:"HABITLOOP_EMAIL_TOKEN"`
	EmailFrom        string `env:"HABITLOOP_EMAIL_FROM" envDefault:"noreply@habitloop.app"`

	StripeSecretKey          string `env:"HABITLOOP_STRIPE_SECRET_KEY"`
	StripeWebhookSecret      string `env:"HABITLOOP_STRIPE_WEBHOOK_SECRET"`
	StripePremiumPriceID     string `env:"HABITLOOP_STRIPE_PREMIUM_PRICE_ID"`
	StripePremiumAnnualPrice string `env:"HABITLOOP_STRIPE_PREMIUM_ANNUAL_PRICE_ID"`

	S3Endpoint         string `env:"HABITLOOP_S3_ENDPOINT"`
	S3Bucket           string `env:"HABITLOOP_S3_BUCKET"`
	S3Region           string `env:"HABITLOOP_S3_REGION" envDefault:"auto"`
	S3AccessKey        string `env:"HABITLOOP_S3_ACCESS_KEY"`
	S3SecretKey        string `env:"HABITLOOP_S3_SECRET_KEY"`
	BackupPassphrase   string `env:"HABITLOOP_BACKUP_PASSPHRASE"`
	BackupScheduleHour int    `env:"HABITLOOP_BACKUP_HOUR" envDefault:"3"`
	BackupKeep         int    `env:"HABITLOOP_BACKUP_KEEP" envDefault:"30"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
