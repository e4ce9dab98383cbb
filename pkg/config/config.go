package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	JWT      JWTConfig      `yaml:"jwt"`
	Payments PaymentsConfig `yaml:"payments"`
	Transfer TransferConfig `yaml:"transfer"`
	Events   EventsConfig   `yaml:"events"`
	Logger   LoggerConfig   `yaml:"logger"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	DBName          string `yaml:"name"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type SecurityConfig struct {
	APIKey string `yaml:"api_key"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type PaymentsConfig struct {
	SessionTimeoutHours int          `yaml:"session_timeout_hours"`
	SweepInterval       int          `yaml:"sweep_interval"` // seconds
	Stripe              StripeConfig `yaml:"stripe"`
	PayPal              PayPalConfig `yaml:"paypal"`
}

type StripeConfig struct {
	WebhookSecret      string        `yaml:"webhook_secret"`
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
}

type PayPalConfig struct {
	BusinessEmail    string        `yaml:"business_email"`
	VerifyURL        string        `yaml:"verify_url"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
}

type TransferConfig struct {
	FeePercent    int   `yaml:"fee_percent"`
	MinimumAmount int64 `yaml:"minimum_amount"`
}

type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Queue         string `yaml:"queue"`
	DrainInterval int    `yaml:"drain_interval"` // seconds
	BatchSize     int    `yaml:"batch_size"`
}

type LoggerConfig struct {
	Level      string `yaml:"level"`
	TimeFormat string `yaml:"time_format"`
	Pretty     bool   `yaml:"pretty"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	var config Config
	configData, err := os.ReadFile("./config.yaml")
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
