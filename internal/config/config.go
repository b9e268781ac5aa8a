package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string
	HTTPAddr           string
	WebBaseURL         string
	CronSecret         string
	JWTSecret          string
	TokenEncryptionKey string // base64, 32 bytes decoded
	PollInterval       int    // seconds
	ShutdownTimeout    int    // seconds
	MaxAccountsPerRun  int
	MaxItemsPerAccount int
	GoogleClientID     string
	GoogleClientSecret string
	LLMProvider        string // "openai" or "gemini"
	OpenAIAPIKey       string
	OpenAIModel        string
	GeminiAPIKey       string
	GeminiModel        string
	VAPIDSubject       string
	VAPIDPublicKey     string
	VAPIDPrivateKey    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	tokenKey := os.Getenv("TOKEN_ENCRYPTION_KEY_B64")
	if tokenKey == "" {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY_B64 is required")
	}

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if googleClientID == "" || googleClientSecret == "" {
		fmt.Println("Warning: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Gmail API will not work")
	}

	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	return &Config{
		DatabaseURL:        dbURL,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		WebBaseURL:         envOr("WEB_BASE_URL", "http://localhost:3000"),
		CronSecret:         os.Getenv("CRON_SECRET"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenEncryptionKey: tokenKey,
		PollInterval:       envIntOr("POLL_INTERVAL_SECONDS", 300),
		ShutdownTimeout:    30,
		MaxAccountsPerRun:  200,
		MaxItemsPerAccount: 25,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		LLMProvider:        provider,
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        envOr("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		VAPIDSubject:       os.Getenv("VAPID_SUBJECT"),
		VAPIDPublicKey:     os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:    os.Getenv("VAPID_PRIVATE_KEY"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
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
