package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port          string
	ServiceName   string
	AllowedOrigin string

	// Logging
	LogLevel  string
	LogFormat string

	// Intent classifier (LUIS)
	LuisAppID          string
	LuisAPIKey         string
	LuisAPIHost        string
	LuisTimezoneOffset int
	LuisTimeout        time.Duration

	// Printer control API (OctoPrint)
	OctoPrintURL    string
	OctoPrintAPIKey string
	DeviceTimeout   time.Duration
	MoveDistance    float64

	// Conversation state
	RedisURL   string
	SlotTTL    time.Duration
	SessionTTL time.Duration

	// NATS configuration
	NatsURL            string
	NatsRequestSubject string
	NatsEventSubject   string
	NatsTimeout        time.Duration

	// Chat connector
	ChatAppID     string
	ChatAppSecret string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3978"),
		ServiceName: getEnv("SERVICE_NAME", "octotalk"),

		AllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		LuisAppID:          getEnv("LUIS_APP_ID", ""),
		LuisAPIKey:         getEnv("LUIS_API_KEY", ""),
		LuisAPIHost:        getEnv("LUIS_API_HOST", "westus.api.cognitive.microsoft.com"),
		LuisTimezoneOffset: getIntEnv("LUIS_TIMEZONE_OFFSET", -360),
		LuisTimeout:        getDurationEnv("LUIS_TIMEOUT", 5*time.Second),

		OctoPrintURL:    strings.TrimRight(getEnv("OCTOPRINT_URL", ""), "/"),
		OctoPrintAPIKey: getEnv("OCTOPRINT_API_KEY", ""),
		DeviceTimeout:   getDurationEnv("DEVICE_TIMEOUT", 5*time.Second),
		MoveDistance:    getFloatEnv("MOVE_DISTANCE", 10),

		RedisURL:   getEnv("REDIS_URL", ""),
		SlotTTL:    getDurationEnv("SLOT_TTL", 5*time.Minute),
		SessionTTL: getDurationEnv("SESSION_TTL", 30*time.Minute),

		NatsURL:            getEnv("NATS_URL", ""),
		NatsRequestSubject: getEnv("NATS_REQUEST_SUBJECT", "octotalk.messages"),
		NatsEventSubject:   getEnv("NATS_EVENT_SUBJECT", "octotalk.device.commands"),
		NatsTimeout:        getDurationEnv("NATS_TIMEOUT", 30*time.Second),

		ChatAppID:     getEnv("CHAT_APP_ID", ""),
		ChatAppSecret: getEnv("CHAT_APP_SECRET", ""),
	}
}

// Validate reports every required credential that is missing.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"LUIS_APP_ID", c.LuisAppID},
		{"LUIS_API_KEY", c.LuisAPIKey},
		{"OCTOPRINT_URL", c.OctoPrintURL},
		{"OCTOPRINT_API_KEY", c.OctoPrintAPIKey},
		{"CHAT_APP_ID", c.ChatAppID},
		{"CHAT_APP_SECRET", c.ChatAppSecret},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.MoveDistance <= 0 {
		return fmt.Errorf("MOVE_DISTANCE must be positive, got %v", c.MoveDistance)
	}
	return nil
}

// LuisEndpoint is the scheme and host the classifier client talks to.
func (c *Config) LuisEndpoint() string {
	if strings.HasPrefix(c.LuisAPIHost, "http://") || strings.HasPrefix(c.LuisAPIHost, "https://") {
		return strings.TrimRight(c.LuisAPIHost, "/")
	}
	return "https://" + c.LuisAPIHost
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
