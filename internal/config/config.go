package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	AdminJWTSecret string

	// Scheduling
	SlotBucketMinutes    int
	StaffSlotCapacity    int
	PortalSlotCapacity   int
	PortalSameDayBuffer  time.Duration
	MinCancelLead        time.Duration
	MaxClientClockSkew   time.Duration
	NoShowThreshold      int
	AvailabilityCacheTTL time.Duration
	PortalBookingLimit   int
	PortalBookingWindow  time.Duration

	// Ledger
	VoidReasonMinLength int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	AWSRegion         string
	WhatsAppEndpoint  string
	WhatsAppToken     string
	OutboxBatchSize   int
	OutboxInterval    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		SlotBucketMinutes:    getEnvAsInt("SLOT_BUCKET_MINUTES", 30),
		StaffSlotCapacity:    getEnvAsInt("STAFF_SLOT_CAPACITY", 5),
		PortalSlotCapacity:   getEnvAsInt("PORTAL_SLOT_CAPACITY", 3),
		PortalSameDayBuffer:  getEnvAsDuration("PORTAL_SAME_DAY_BUFFER", 60*time.Minute),
		MinCancelLead:        getEnvAsDuration("MIN_CANCEL_LEAD", 24*time.Hour),
		MaxClientClockSkew:   getEnvAsDuration("MAX_CLIENT_CLOCK_SKEW", 30*time.Minute),
		NoShowThreshold:      getEnvAsInt("NO_SHOW_THRESHOLD", 3),
		AvailabilityCacheTTL: getEnvAsDuration("AVAILABILITY_CACHE_TTL", 60*time.Second),
		PortalBookingLimit:   getEnvAsInt("PORTAL_BOOKING_LIMIT", 5),
		PortalBookingWindow:  getEnvAsDuration("PORTAL_BOOKING_WINDOW", time.Hour),

		VoidReasonMinLength: getEnvAsInt("VOID_REASON_MIN_LENGTH", 10),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EmailProvider:     getEnv("EMAIL_PROVIDER", "sendgrid"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Baby Spa"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Baby Spa"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		WhatsAppEndpoint:  getEnv("WHATSAPP_ENDPOINT", ""),
		WhatsAppToken:     getEnv("WHATSAPP_TOKEN", ""),
		OutboxBatchSize:   getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
		OutboxInterval:    getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
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
