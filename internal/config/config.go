package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	BWT         BWTConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Validation  ValidationConfig
	Anomaly     AnomalyConfig
}

// BWTConfig holds vendor API credentials and polling settings
type BWTConfig struct {
	BaseURL             string
	Username            string
	Password            string
	DeviceKey           string
	WaterPricePerM3     float64
	PollIntervalMinutes int
	HTTPTimeoutSeconds  int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and routing settings
type RabbitMQConfig struct {
	URL                  string
	WorkerExchange       string
	SnapshotRoutingKey   string
	PollFailedRoutingKey string
	CommandExchange      string
	CommandQueue         string
	CommandRoutingKey    string
	DLQQueue             string
	PrefetchCount        int
}

// ValidationConfig holds snapshot validation settings
type ValidationConfig struct {
	DateToleranceDays int
}

// AnomalyConfig holds counter anomaly detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "water-softener-worker"),
		BWT: BWTConfig{
			BaseURL:             getEnv("BWT_BASE_URL", "https://www.bwt-monservice.com"),
			Username:            getEnv("BWT_USERNAME", ""),
			Password:            getEnv("BWT_PASSWORD", ""),
			DeviceKey:           getEnv("BWT_DEVICE_KEY", ""),
			WaterPricePerM3:     getEnvAsFloat("WATER_PRICE_PER_M3", 3.5),
			PollIntervalMinutes: getEnvAsInt("POLL_INTERVAL_MINUTES", 30),
			HTTPTimeoutSeconds:  getEnvAsInt("HTTP_TIMEOUT_SECONDS", 60),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                  getEnv("RABBITMQ_URL", ""),
			WorkerExchange:       getEnv("RABBITMQ_WORKER_EXCHANGE", "water-softener.worker.events.exchange"),
			SnapshotRoutingKey:   getEnv("RABBITMQ_SNAPSHOT_ROUTING_KEY", "softener.snapshot.updated"),
			PollFailedRoutingKey: getEnv("RABBITMQ_POLL_FAILED_ROUTING_KEY", "softener.poll.failed"),
			CommandExchange:      getEnv("RABBITMQ_COMMAND_EXCHANGE", "water-softener.commands.exchange"),
			CommandQueue:         getEnv("RABBITMQ_COMMAND_QUEUE", "water-softener.poll-request.queue"),
			CommandRoutingKey:    getEnv("RABBITMQ_COMMAND_ROUTING_KEY", "softener.poll.request"),
			DLQQueue:             getEnv("RABBITMQ_DLQ_QUEUE", "water-softener.poll-request.dlq"),
			PrefetchCount:        getEnvAsInt("RABBITMQ_PREFETCH", 1),
		},
		Validation: ValidationConfig{
			DateToleranceDays: getEnvAsInt("VALIDATION_DATE_TOLERANCE_DAYS", 7),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            getEnvAsFloat("MONITOR_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: getEnvAsInt("MONITOR_MIN_DATA_POINTS", 3),
		},
	}

	// Validate required fields
	if cfg.BWT.Username == "" {
		return nil, fmt.Errorf("BWT_USERNAME is required but not set in environment variables")
	}
	if cfg.BWT.Password == "" {
		return nil, fmt.Errorf("BWT_PASSWORD is required but not set in environment variables")
	}
	if cfg.BWT.DeviceKey == "" {
		return nil, fmt.Errorf("BWT_DEVICE_KEY is required but not set in environment variables")
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
