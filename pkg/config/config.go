package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string

	// Remote catalog API
	APIBaseURL     string
	APISecretToken string
	SaveURL        string
	Username       string
	Password       string
	RequestTimeout time.Duration

	// Edit session
	PageSize         int
	RefreshThreshold time.Duration
	RefreshTimeout   time.Duration
	CollisionPolicy  string

	// Save endpoint
	JWTSecret      string
	AllowedOrigins []string
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", "file:sorter.sqlite"),
		AppEnv:           getEnv("APP_ENV", "local"),
		APIBaseURL:       strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		APISecretToken:   getEnv("API_SECRET_TOKEN", ""),
		SaveURL:          strings.TrimRight(getEnv("SAVE_URL", "http://localhost:8080"), "/"),
		Username:         getEnv("SORTER_USERNAME", ""),
		Password:         getEnv("SORTER_PASSWORD", ""),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 20*time.Second),
		PageSize:         getInt("PAGE_SIZE", 36),
		RefreshThreshold: getDuration("REFRESH_THRESHOLD", 5*time.Minute),
		RefreshTimeout:   getDuration("REFRESH_TIMEOUT", 15*time.Second),
		CollisionPolicy:  getEnv("COLLISION_POLICY", "reject"),
		JWTSecret:        getEnv("JWT_SECRET", "secret"),
		AllowedOrigins:   getList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
