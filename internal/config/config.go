package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Harness  HarnessConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL            string
	User           string
	Password       string
	ConnectTimeout time.Duration
	// MigrationsSource is a golang-migrate source URL. Empty selects the
	// migrations embedded in the binary.
	MigrationsSource string
	MigrateOnStart   bool
}

// HarnessConfig holds the defaults for the parallel insert experiment.
type HarnessConfig struct {
	Isolation        string
	Workers          int
	RecordsPerWorker int
	RecordDelay      time.Duration
	HashIndex        bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvStr("PORT", "8080"),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 0),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:              getEnvStr("DATABASE_URL", "postgres://localhost:5432/testdb?sslmode=disable"),
			User:             getEnvStr("DB_USER", "testuser"),
			Password:         getEnvStr("DB_PASSWORD", "testpassword"),
			ConnectTimeout:   getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
			MigrationsSource: getEnvStr("MIGRATIONS_SOURCE", ""),
			MigrateOnStart:   getEnvBool("MIGRATE_ON_START", true),
		},
		Harness: HarnessConfig{
			Isolation:        getEnvStr("HARNESS_ISOLATION", "read-committed"),
			Workers:          getEnvInt("HARNESS_WORKERS", 50),
			RecordsPerWorker: getEnvInt("HARNESS_RECORDS_PER_WORKER", 10000),
			RecordDelay:      getEnvDuration("HARNESS_RECORD_DELAY", 9*time.Millisecond),
			HashIndex:        getEnvBool("HARNESS_HASH_INDEX", false),
		},
		Logging: LoggingConfig{
			Level:  getEnvStr("LOG_LEVEL", "info"),
			Format: getEnvStr("LOG_FORMAT", "text"),
		},
	}
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
