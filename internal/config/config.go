// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the job server.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	DatabaseURL       string        // Postgres connection string; empty selects the in-memory store
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
}

// BatchConfig holds configuration for the AWS Batch backend.
type BatchConfig struct {
	Region        string
	JobQueue      string
	JobDefinition string
	LogGroup      string
	PollInterval  time.Duration // How often to ask the backend about a running job
}

// StreamConfig holds configuration for SSE status streams.
type StreamConfig struct {
	KeepAlive time.Duration // Idle interval before a keepalive event is emitted
}

// LoadServiceConfig loads service configuration from environment variables.
// The API key can come from a mounted secret file (API_KEY_FILE) or, for
// local runs, straight from API_KEY.
func LoadServiceConfig() *ServiceConfig {
	apiKey := GetSecretFile(GetEnv("API_KEY_FILE", ""))
	if apiKey == "" {
		apiKey = GetEnv("API_KEY", "")
	}

	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            apiKey,
		DatabaseURL:       GetEnv("DATABASE_URL", ""),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
	}
}

// LoadBatchConfig loads batch backend configuration from environment variables.
func LoadBatchConfig() *BatchConfig {
	return &BatchConfig{
		Region:        GetEnv("AWS_REGION", "us-east-1"),
		JobQueue:      GetEnv("BATCH_JOB_QUEUE", ""),
		JobDefinition: GetEnv("BATCH_JOB_DEFINITION", ""),
		LogGroup:      GetEnv("BATCH_LOG_GROUP", "/aws/batch/job"),
		PollInterval:  GetDurationEnv("POLL_INTERVAL", 60*time.Second),
	}
}

// LoadStreamConfig loads stream configuration from environment variables.
func LoadStreamConfig() *StreamConfig {
	return &StreamConfig{
		KeepAlive: GetDurationEnv("STREAM_KEEPALIVE", 30*time.Second),
	}
}
