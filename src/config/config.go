package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	JWTSecret         string
	Port              string
	DatabasePath      string
	LogLevel          string
	AccessTokenExpiry time.Duration

	// Shared secret expected in the X-Refresh-Token header of the
	// scheduled stock refresh endpoint.
	StockRefreshSecret string
	QuoteCacheTTL      time.Duration
	SummaryCacheTTL    time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendBaseURL    string

	EmailServiceProvider string
	MailgunDomain        string
	MailgunPrivateAPIKey string
	SenderEmail          string
	SenderName           string

	GeminiModel string

	MaxUploadSizeBytes int64
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	stockRefreshSecret := getEnv("STOCK_REFRESH_SECRET", "")
	if stockRefreshSecret == "" {
		log.Println("WARNING: STOCK_REFRESH_SECRET not set; the scheduled stock refresh endpoint accepts unauthenticated calls.")
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		JWTSecret:         jwtSecret,
		Port:              getEnv("PORT", "8080"),
		DatabasePath:      getEnv("DATABASE_PATH", "./smartledger.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),

		StockRefreshSecret: stockRefreshSecret,
		QuoteCacheTTL:      getEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute),
		SummaryCacheTTL:    getEnvAsDuration("SUMMARY_CACHE_TTL", 1*time.Minute),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		FrontendBaseURL:    getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),

		EmailServiceProvider: getEnv("EMAIL_SERVICE_PROVIDER", "none"),
		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),
		SenderEmail:          getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:           getEnv("SENDER_NAME", "SmartLedger App"),

		GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		MaxUploadSizeBytes: maxUploadSizeBytes,
	}

	if Cfg.EmailServiceProvider == "mailgun" {
		if Cfg.MailgunDomain == "" {
			log.Fatalf("FATAL: MAILGUN_DOMAIN is required when EMAIL_SERVICE_PROVIDER is 'mailgun', but it's not set in environment or .env file.")
		}
		if Cfg.MailgunPrivateAPIKey == "" {
			log.Fatalf("FATAL: MAILGUN_PRIVATE_API_KEY is required when EMAIL_SERVICE_PROVIDER is 'mailgun', but it's not set in environment or .env file.")
		}
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, EmailProvider=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.EmailServiceProvider)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
