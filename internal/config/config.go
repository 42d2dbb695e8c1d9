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
	// Server
	Port string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Sessions
	SessionTokenSecret string
	SessionTokenTTL    time.Duration
	SessionIdleTimeout time.Duration

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Speech
	SpeechProvider string
	OpenAIAPIKey   string
	OpenAITTSModel string
	OpenAITTSVoice string
	ESpeakBinary   string

	// Uploads and jobs
	MaxUploadBytes int64
	WorkerCount    int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		SessionTokenSecret:   mustGetEnv("SESSION_TOKEN_SECRET"),
		SessionTokenTTL:      time.Duration(getEnvAsIntOrDefault("SESSION_TOKEN_TTL_HOURS", 12)) * time.Hour,
		SessionIdleTimeout:   time.Duration(getEnvAsIntOrDefault("SESSION_IDLE_MINUTES", 60)) * time.Minute,
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		SpeechProvider:       strings.ToLower(getEnvOrDefault("SPEECH_PROVIDER", "openai")),
		OpenAIAPIKey:         getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAITTSModel:       getEnvOrDefault("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		OpenAITTSVoice:       getEnvOrDefault("OPENAI_TTS_VOICE", "nova"),
		ESpeakBinary:         getEnvOrDefault("ESPEAK_BINARY", "espeak-ng"),
		MaxUploadBytes:       int64(getEnvAsIntOrDefault("MAX_UPLOAD_MB", 20)) << 20,
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 4),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
