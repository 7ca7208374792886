package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Everything the
// reconciliation engine needs is passed in explicitly from here; no package
// reads gateway credentials from the environment on its own.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string

	// Payment gateway
	GatewayBaseURL      string
	GatewaySecretKey    string
	GatewayCategoryCode string
	GatewayTimeout      time.Duration
	CallbackBaseURL     string

	// Status-poll reconciler
	PollInterval  time.Duration
	PollMinAge    time.Duration
	PollBatchSize int

	// Settlement policy: clamp an over-reported settlement to the remaining
	// balance instead of failing the reconciliation.
	ClampExcess bool

	// Operator alerts
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AlertFrom    string
	AlertTo      string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		return nil, fmt.Errorf("error loading .env file: %v", err)
	}

	config := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Port:       os.Getenv("PORT"),
		Env:        os.Getenv("ENV"),

		GatewayBaseURL:      os.Getenv("GATEWAY_BASE_URL"),
		GatewaySecretKey:    os.Getenv("GATEWAY_SECRET_KEY"),
		GatewayCategoryCode: os.Getenv("GATEWAY_CATEGORY_CODE"),
		GatewayTimeout:      envDuration("GATEWAY_TIMEOUT", 15*time.Second),
		CallbackBaseURL:     os.Getenv("CALLBACK_BASE_URL"),

		PollInterval:  envDuration("POLL_INTERVAL", 5*time.Minute),
		PollMinAge:    envDuration("POLL_MIN_AGE", 10*time.Minute),
		PollBatchSize: envInt("POLL_BATCH_SIZE", 50),

		ClampExcess: envBool("PAYMENT_CLAMP_EXCESS", true),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		AlertFrom:    os.Getenv("ALERT_FROM"),
		AlertTo:      os.Getenv("ALERT_TO"),
	}

	return config, nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
