package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicHost    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	OpenAIAPIKey      string
	OpenAIRealtimeURL string
	OpenAIVoice       string
	OpenAIChatModel   string
	OpenAIChatURL     string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	CallToNumber     string
	WhatsAppFrom     string
	WhatsAppTo       string

	AdminJWTSecret string

	DefaultPatientID int
	DefaultDoctorID  int

	DBConnectRetries int
	DBConnectDelay   time.Duration
	AIDialRetries    int
	AIDialDelay      time.Duration
	AIReadTimeout    time.Duration
	GoodbyeGrace     time.Duration
	TranscriptTTL    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicHost:    getEnv("PUBLIC_HOST", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIRealtimeURL: getEnv("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"),
		OpenAIVoice:       getEnv("OPENAI_VOICE", "alloy"),
		OpenAIChatModel:   getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIChatURL:     getEnv("OPENAI_CHAT_URL", "https://api.openai.com/v1/chat/completions"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		CallToNumber:     getEnv("CALL_TO_NUMBER", ""),
		WhatsAppFrom:     getEnv("WHATSAPP_FROM_NUMBER", ""),
		WhatsAppTo:       getEnv("WHATSAPP_TO_NUMBER", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		DefaultPatientID: getEnvAsInt("DEFAULT_PATIENT_ID", 1),
		DefaultDoctorID:  getEnvAsInt("DEFAULT_DOCTOR_ID", 1),

		DBConnectRetries: getEnvAsInt("DB_CONNECT_RETRIES", 3),
		DBConnectDelay:   getEnvAsDuration("DB_CONNECT_DELAY", 2*time.Second),
		AIDialRetries:    getEnvAsInt("AI_DIAL_RETRIES", 3),
		AIDialDelay:      getEnvAsDuration("AI_DIAL_DELAY", 2*time.Second),
		AIReadTimeout:    getEnvAsDuration("AI_READ_TIMEOUT", 60*time.Second),
		GoodbyeGrace:     getEnvAsDuration("GOODBYE_GRACE", 5*time.Second),
		TranscriptTTL:    getEnvAsDuration("TRANSCRIPT_TTL", 30*24*time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
