package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the realtime service.
type Config struct {
	Addr string `validate:"required"`

	DBUrl  string `validate:"required,url"`
	DBNs   string `validate:"required"`
	DBDb   string `validate:"required"`
	DBUser string
	DBPass string

	// JWTSecret verifies the short-lived access tokens presented on the
	// websocket handshake. Token issuance happens elsewhere; we only verify.
	JWTSecret string `validate:"required"`

	// OnlineTTL is how long after the last recorded activity a user is still
	// reported online.
	OnlineTTL time.Duration `validate:"required,min=1s"`
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:      getEnv("REALTIME_ADDR", ":8080"),
		DBUrl:     os.Getenv("SURREAL_URL"),
		DBUser:    os.Getenv("SURREAL_USER"),
		DBPass:    os.Getenv("SURREAL_PASS"),
		DBNs:      os.Getenv("SURREAL_NS"),
		DBDb:      os.Getenv("SURREAL_DB"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		OnlineTTL: getDurationSeconds("ONLINE_TTL_SECONDS", 300*time.Second),
	}

	if err := validator.New().Struct(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		log.Fatalf("%s must be a positive integer, got %q", key, v)
	}
	return time.Duration(secs) * time.Second
}
