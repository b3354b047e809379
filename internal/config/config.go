// Package config centralizes environment-driven settings and the tuning
// constants shared by the coordination core.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// TypingExpiry is the silence window after which a typing signal is
	// considered stale; a repeated identical signal inside the window is
	// suppressed, clients expire the indicator on the same schedule.
	TypingExpiry = 3 * time.Second

	// StoreTimeout bounds every persistence call so a stalled store
	// surfaces as a failure instead of hanging the live channel.
	StoreTimeout = 5 * time.Second

	// StoreRetries and StoreRetryBackoff bound the retry loop around
	// counter updates and message persists.
	StoreRetries      = 3
	StoreRetryBackoff = 100 * time.Millisecond

	// MaxMessageLength caps message content after trimming.
	MaxMessageLength = 4000

	// DefaultPageSize and MaxPageSize bound history pagination.
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Config holds the values read from the environment at startup.
type Config struct {
	ServerAddr string
	Database
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
}

// Database groups the PostgreSQL connection settings.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN renders the gorm/postgres connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

// Load reads the configuration from the environment. Callers load .env
// beforehand (godotenv) so local runs work without exported variables.
func Load() Config {
	return Config{
		ServerAddr: getenv("SERVER_ADDR", ":8080"),
		Database: Database{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			User:     getenv("DB_USER", "livedesk"),
			Password: getenv("DB_PASSWORD", "livedesk"),
			Name:     getenv("DB_NAME", "livedesk"),
		},
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),
		JWTSecret:     getenv("JWT_SECRET", "dev-only-secret"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
