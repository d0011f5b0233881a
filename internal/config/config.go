package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-rmib/internal/validator"
)

// Config holds all application configuration.
type Config struct {
	LogLevel  string `validate:"oneof=trace debug info warn error fatal panic"`
	LogFormat string `validate:"oneof=pretty json"`

	// Mode is "rank" (drag or numeric ranking) or "level" (sliders).
	Mode           string `validate:"oneof=rank level"`
	StudentID      int    `validate:"gt=0"`
	BaseURL        string `validate:"required,url"`
	CategoriesFile string `validate:"omitempty,file"`

	AutosaveInterval time.Duration `validate:"gte=1s"`
	RequestTimeout   time.Duration `validate:"gte=1s"`

	// Store selects the progress store: "http" (backend API) or "redis".
	Store    string `validate:"oneof=http redis"`
	RedisURL string `validate:"required_if=Store redis"`

	ServerPort string `validate:"required,numeric"`
	GinMode    string `validate:"oneof=debug release test"`

	// ActionRateLimit is the number of actions one client may post per minute.
	ActionRateLimit int `validate:"gte=1"`

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		Mode:             strings.ToLower(getEnv("RMIB_MODE", "rank")),
		StudentID:        getEnvInt("RMIB_STUDENT_ID", 0),
		BaseURL:          strings.TrimRight(getEnv("RMIB_BASE_URL", "http://localhost:8000"), "/"),
		CategoriesFile:   getEnv("RMIB_CATEGORIES_FILE", ""),
		AutosaveInterval: time.Duration(getEnvInt("RMIB_AUTOSAVE_INTERVAL_SECONDS", 30)) * time.Second,
		RequestTimeout:   time.Duration(getEnvInt("RMIB_REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		Store:            strings.ToLower(getEnv("RMIB_STORE", "http")),
		RedisURL:         getEnv("REDIS_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8090"),
		ActionRateLimit:  getEnvInt("RMIB_ACTION_RATE_LIMIT", 120),
		GinMode:          getEnv("GIN_MODE", "debug"),
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// StudentBaseURL is the root of the configured student's RMIB endpoints.
func (c *Config) StudentBaseURL() string {
	return c.StudentURL(c.StudentID)
}

// StudentURL is the root of any student's RMIB endpoints.
func (c *Config) StudentURL(studentID int) string {
	return c.BaseURL + "/students/" + strconv.Itoa(studentID) + "/rmib/"
}

// ResultPath is where the page goes after a successful submit.
func (c *Config) ResultPath() string {
	return "/students/" + strconv.Itoa(c.StudentID) + "/rmib/result/"
}

// Validate checks the loaded values. The returned map is keyed by field name.
func (c *Config) Validate() map[string]string {
	return validator.Struct(c)
}
