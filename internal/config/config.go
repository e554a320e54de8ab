package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Secrets
	JWTSecret     string
	SessionSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Local fallback model (OpenAI-compatible endpoint; empty disables fallback)
	LocalModelURL  string
	LocalModelName string

	// Quiz sessions
	QuizTimeLimitSeconds     int
	SessionSweepIntervalMins int
	MaxQuestionsPerQuiz      int

	// Usage accounting (USD per 1M tokens)
	PromptTokenCostPerM     float64
	CompletionTokenCostPerM float64

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),

		JWTSecret:     mustGetEnv("JWT_SECRET"),
		SessionSecret: mustGetEnv("SESSION_SECRET"),

		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		LocalModelURL:  getEnvOrDefault("LOCAL_MODEL_URL", ""),
		LocalModelName: getEnvOrDefault("LOCAL_MODEL_NAME", "llama3"),

		QuizTimeLimitSeconds:     getEnvAsIntOrDefault("QUIZ_TIME_LIMIT_SECONDS", 600),
		SessionSweepIntervalMins: getEnvAsIntOrDefault("SESSION_SWEEP_INTERVAL_MINUTES", 15),
		MaxQuestionsPerQuiz:      getEnvAsIntOrDefault("MAX_QUESTIONS_PER_QUIZ", 20),

		PromptTokenCostPerM:     getEnvAsFloatOrDefault("PROMPT_TOKEN_COST_PER_MILLION", 0.10),
		CompletionTokenCostPerM: getEnvAsFloatOrDefault("COMPLETION_TOKEN_COST_PER_MILLION", 0.40),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
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

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
