package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DatabaseURL       string
	JWTSecret         string
	SiteConfig        string
	OrderEndpoint     string
	LandingURL        string
	SubmitTimeout     time.Duration
	SessionTTL        time.Duration
	AdminEmail        string
	AdminPasswordHash string
	AllowedOrigins    []string
	LogLevel          string
	Env               string
}

// Load reads the environment, after loading a .env file when one exists.
// An empty DATABASE_URL keeps submission attempts in memory.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return &Config{
		Port:              getEnv("PORT", "8081"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		SiteConfig:        getEnv("SITE_CONFIG", "site.json"),
		OrderEndpoint:     getEnv("ORDER_ENDPOINT", ""),
		LandingURL:        getEnv("LANDING_URL", "index.html"),
		SubmitTimeout:     getDuration("SUBMIT_TIMEOUT", 15*time.Second),
		SessionTTL:        getDuration("SESSION_TTL", 2*time.Hour),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AllowedOrigins:    getList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Env:               getEnv("APP_ENV", "production"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
