package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	JWTSecret string

	// Socket tuning.
	SubscribeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	SendBufferSize   int

	ShutdownTimeout time.Duration
}

func NewConfig() *Config {
	return &Config{
		Port:             "3000",
		AllowedOrigins:   []string{"http://localhost:5173"},
		LogLevel:         "info",
		DBPort:           "5432",
		SubscribeTimeout: 30 * time.Second,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		SendBufferSize:   32,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Load reads configuration from environment variables and .env on top of
// the defaults from NewConfig.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := NewConfig()
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DBHost, "DB_HOST")
	setString(&cfg.DBUser, "DB_USER")
	setString(&cfg.DBPassword, "DB_PASSWORD")
	setString(&cfg.DBName, "DB_NAME")
	setString(&cfg.DBPort, "DB_PORT")
	setString(&cfg.JWTSecret, "JWT_SECRET")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	for key, dst := range map[string]*time.Duration{
		"WS_SUBSCRIBE_TIMEOUT": &cfg.SubscribeTimeout,
		"WS_WRITE_WAIT":        &cfg.WriteWait,
		"WS_PONG_WAIT":         &cfg.PongWait,
		"SHUTDOWN_TIMEOUT":     &cfg.ShutdownTimeout,
	} {
		if err := setDuration(dst, key); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("WS_SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("WS_SEND_BUFFER must be a positive integer, got %q", v)
		}
		cfg.SendBufferSize = n
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	*dst = d
	return nil
}
