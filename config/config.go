package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresMaxConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTLSec    int

	ImageScoreURL       string
	ImageScoreTimeoutMs int
	ImageScoreCacheSec  int

	Tenants        []string
	MaxConcurrency int
	MaxRetries     int
	RulesPath      string

	DiscardCSVPath string
	ExportXLSXPath string
	HTTPAddr       string

	LogLevel  string
	LogFormat string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "leads"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "leads123"),
		PostgresDB:       getEnv("POSTGRES_DB", "leads_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresMaxConns: getEnvInt("POSTGRES_MAX_CONNS", 8),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LockTTLSec:    getEnvInt("LOCK_TTL_SEC", 900),

		ImageScoreURL:       getEnv("IMAGE_SCORE_URL", ""),
		ImageScoreTimeoutMs: getEnvInt("IMAGE_SCORE_TIMEOUT_MS", 5000),
		ImageScoreCacheSec:  getEnvInt("IMAGE_SCORE_CACHE_SEC", 3600),

		Tenants:        getEnvList("TENANTS"),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RulesPath:      getEnv("RULES_PATH", ""),

		DiscardCSVPath: getEnv("DISCARD_CSV_PATH", ""),
		ExportXLSXPath: getEnv("EXPORT_XLSX_PATH", ""),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
