package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-level configuration for the orchestrator, loaded
// from the environment.
type Config struct {
	Port       string
	InstanceID string

	// Relational store
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (session presence, alert rate limiting, dictionary reload)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// External model services
	STTBaseURL     string
	TTSBaseURL     string
	LLMBaseURL     string
	DenoiseBaseURL string
	ExtractBaseURL string
	ProsodyBaseURL string

	// Recording storage
	RecordingStorageMode string // "local", "gcs" or "dual"
	RecordingLocalPath   string
	RecordingGCSBucket   string

	// Batch enrichment notifications
	PubSubProjectID string
	PubSubTopic     string

	// Admin API
	AdminAPISecret string

	// Shutdown drain grace for active sessions
	ShutdownGrace time.Duration

	Pipeline PipelineConfig
}

// LoadFromEnv loads the full configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Port:       getEnvOrDefault("PORT", "8082"),
		InstanceID: instanceID(),

		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "postgres"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", ""),
		DBName:     getEnvOrDefault("DB_NAME", "voice_orchestrator"),
		DBSSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsIntOrDefault("REDIS_DB", 0),

		STTBaseURL:     getEnvOrDefault("STT_BASE_URL", "http://localhost:9001"),
		TTSBaseURL:     getEnvOrDefault("TTS_BASE_URL", "http://localhost:9002"),
		LLMBaseURL:     getEnvOrDefault("LLM_BASE_URL", "http://localhost:9003"),
		DenoiseBaseURL: getEnvOrDefault("DENOISE_BASE_URL", ""),
		ExtractBaseURL: getEnvOrDefault("EXTRACT_BASE_URL", ""),
		ProsodyBaseURL: getEnvOrDefault("PROSODY_BASE_URL", ""),

		RecordingStorageMode: getEnvOrDefault("RECORDING_STORAGE_MODE", "local"),
		RecordingLocalPath:   getEnvOrDefault("RECORDING_LOCAL_PATH", "/var/lib/voice-orchestrator"),
		RecordingGCSBucket:   getEnvOrDefault("RECORDING_GCS_BUCKET", ""),

		PubSubProjectID: getEnvOrDefault("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:     getEnvOrDefault("PUBSUB_TOPIC", "recording-enrichment"),

		AdminAPISecret: getEnvOrDefault("ADMIN_API_SECRET", ""),

		ShutdownGrace: time.Duration(getEnvAsIntOrDefault("SHUTDOWN_GRACE_SECONDS", 30)) * time.Second,

		Pipeline: LoadPipelineFromEnv(),
	}
}

// DSN assembles the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// instanceID generates a unique identifier for this service instance.
// The system hostname (pod name on Kubernetes) is preferred; a timestamp
// based ID is the fallback.
func instanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("voice-orchestrator-%d", time.Now().UnixNano())
}

// getEnvOrDefault gets an environment variable or returns the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets an environment variable as int or returns the default.
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloatOrDefault gets an environment variable as float64 or returns the default.
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
