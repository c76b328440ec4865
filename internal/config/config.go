package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Channel names accepted in DUNNING_CHANNELS.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// Email provider selectors accepted in EMAIL_PROVIDER.
const (
	EmailProviderResend   = "resend"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderDisabled = "disabled"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode      string // Set via flag, not env
	MockServices bool
	LogLevel     string
	LogFormat    string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Service API
	ServiceApiPort string
	JwtSecret      string

	// Dunning
	DunningDailyCap            int
	DunningWindowStartHour     int
	DunningWindowEndHour       int
	DunningDefaultLocale       string
	DunningChannels            []string
	DunningTimezone            string
	DunningLocation            *time.Location
	DunningBatchSize           int
	DunningCron                string
	DunningMaxReminders        int
	DunningMinReminderInterval time.Duration
	DunningCooldown            time.Duration
	DunningIdempotencyBackend  string
	DunningDefaultBusinessName string
	DunningRunLockTTL          time.Duration
	DunningProcessedKeyTTL     time.Duration
	ProviderTimeout            time.Duration

	// WhatsApp Cloud API
	WhatsAppAccessToken     string
	WhatsAppBusinessPhoneID string
	WhatsAppAPIBaseURL      string
	WhatsAppDevMode         bool
	WhatsAppTemplateLang    string
	WhatsAppRatePerSecond   float64

	// Email
	EmailProvider      string
	EmailAPIKey        string
	EmailFrom          string
	ResendAPIURL       string
	SendGridAPIURL     string
	EmailRatePerSecond float64

	// AWS S3 (run report archive, optional)
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	ReportsS3Bucket    string
}

// ChannelEnabled reports whether the named channel is listed in DUNNING_CHANNELS.
func (c *Config) ChannelEnabled(name string) bool {
	for _, ch := range c.DunningChannels {
		if ch == name {
			return true
		}
	}
	return false
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.RunMode = runMode
	return cfg, nil
}

// FromEnv builds a Config from the given lookup function. Load uses os.LookupEnv;
// tests pass a map-backed lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := lookup(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := lookup(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getFloat := func(key, defaultValue string) (float64, error) {
		v, err := strconv.ParseFloat(getEnv(key, defaultValue), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getBool := func(key, defaultValue string) (bool, error) {
		v, err := strconv.ParseBool(getEnv(key, defaultValue))
		if err != nil {
			return false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	// Infrastructure
	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "dunning")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")
	if cfg.MockServices, err = getBool("MOCK_SERVICES", "false"); err != nil {
		return nil, err
	}

	// Dunning
	if cfg.DunningDailyCap, err = getInt("DUNNING_DAILY_CAP", "50"); err != nil {
		return nil, err
	}
	if cfg.DunningDailyCap < 0 {
		return nil, fmt.Errorf("invalid DUNNING_DAILY_CAP: must be >= 0, got %d", cfg.DunningDailyCap)
	}
	if cfg.DunningWindowStartHour, err = getInt("DUNNING_WINDOW_START_HOUR", "9"); err != nil {
		return nil, err
	}
	if cfg.DunningWindowEndHour, err = getInt("DUNNING_WINDOW_END_HOUR", "18"); err != nil {
		return nil, err
	}
	if err := validateHour("DUNNING_WINDOW_START_HOUR", cfg.DunningWindowStartHour); err != nil {
		return nil, err
	}
	if err := validateHour("DUNNING_WINDOW_END_HOUR", cfg.DunningWindowEndHour); err != nil {
		return nil, err
	}
	if cfg.DunningWindowStartHour >= cfg.DunningWindowEndHour {
		return nil, fmt.Errorf("invalid sending window: start hour %d must be before end hour %d",
			cfg.DunningWindowStartHour, cfg.DunningWindowEndHour)
	}

	cfg.DunningDefaultLocale = getEnv("DUNNING_DEFAULT_LOCALE", "nl")
	if cfg.DunningDefaultLocale != "nl" && cfg.DunningDefaultLocale != "en" {
		return nil, fmt.Errorf("invalid DUNNING_DEFAULT_LOCALE: %q (expected nl or en)", cfg.DunningDefaultLocale)
	}

	cfg.DunningChannels, err = parseChannels(getEnv("DUNNING_CHANNELS", "whatsapp,email"))
	if err != nil {
		return nil, err
	}

	cfg.DunningTimezone = getEnv("DUNNING_TIMEZONE", "Europe/Amsterdam")
	cfg.DunningLocation, err = time.LoadLocation(cfg.DunningTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DUNNING_TIMEZONE: %w", err)
	}

	if cfg.DunningBatchSize, err = getInt("DUNNING_BATCH_SIZE", "50"); err != nil {
		return nil, err
	}
	if cfg.DunningBatchSize <= 0 {
		return nil, fmt.Errorf("invalid DUNNING_BATCH_SIZE: must be > 0, got %d", cfg.DunningBatchSize)
	}
	cfg.DunningCron = getEnv("DUNNING_CRON", "0 * * * *")
	if cfg.DunningMaxReminders, err = getInt("DUNNING_MAX_REMINDERS", "4"); err != nil {
		return nil, err
	}

	minIntervalHours, err := getInt("DUNNING_MIN_REMINDER_INTERVAL_HOURS", "72")
	if err != nil {
		return nil, err
	}
	cfg.DunningMinReminderInterval = time.Duration(minIntervalHours) * time.Hour

	cooldownDays, err := getInt("DUNNING_COOLDOWN_DAYS", "3")
	if err != nil {
		return nil, err
	}
	cfg.DunningCooldown = time.Duration(cooldownDays*24) * time.Hour

	cfg.DunningIdempotencyBackend = getEnv("DUNNING_IDEMPOTENCY_BACKEND", "mongo")
	if cfg.DunningIdempotencyBackend != "mongo" && cfg.DunningIdempotencyBackend != "redis" {
		return nil, fmt.Errorf("invalid DUNNING_IDEMPOTENCY_BACKEND: %q (expected mongo or redis)", cfg.DunningIdempotencyBackend)
	}
	cfg.DunningDefaultBusinessName = getEnv("DUNNING_DEFAULT_BUSINESS_NAME", "Uw vakman")

	lockTTLMinutes, err := getInt("DUNNING_RUN_LOCK_TTL_MINUTES", "30")
	if err != nil {
		return nil, err
	}
	cfg.DunningRunLockTTL = time.Duration(lockTTLMinutes) * time.Minute

	keyTTLHours, err := getInt("DUNNING_PROCESSED_KEY_TTL_HOURS", "48")
	if err != nil {
		return nil, err
	}
	cfg.DunningProcessedKeyTTL = time.Duration(keyTTLHours) * time.Hour

	timeoutSeconds, err := getInt("PROVIDER_TIMEOUT_SECONDS", "10")
	if err != nil {
		return nil, err
	}
	cfg.ProviderTimeout = time.Duration(timeoutSeconds) * time.Second

	// WhatsApp
	cfg.WhatsAppAccessToken = getEnv("WHATSAPP_ACCESS_TOKEN", "")
	cfg.WhatsAppBusinessPhoneID = getEnv("WHATSAPP_BUSINESS_PHONE_ID", "")
	cfg.WhatsAppAPIBaseURL = strings.TrimRight(getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0"), "/")
	if cfg.WhatsAppDevMode, err = getBool("WHATSAPP_DEV_MODE", "false"); err != nil {
		return nil, err
	}
	cfg.WhatsAppTemplateLang = getEnv("WHATSAPP_TEMPLATE_LANGUAGE", "nl")
	if cfg.WhatsAppRatePerSecond, err = getFloat("WHATSAPP_RATE_PER_SECOND", "10"); err != nil {
		return nil, err
	}

	// Email
	cfg.EmailProvider = strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderResend))
	switch cfg.EmailProvider {
	case EmailProviderResend, EmailProviderSendGrid, EmailProviderDisabled:
	default:
		return nil, fmt.Errorf("invalid EMAIL_PROVIDER: %q", cfg.EmailProvider)
	}
	cfg.EmailAPIKey = getEnv("EMAIL_API_KEY", "")
	cfg.EmailFrom = getEnv("EMAIL_FROM", "")
	cfg.ResendAPIURL = getEnv("RESEND_API_URL", "https://api.resend.com/emails")
	cfg.SendGridAPIURL = getEnv("SENDGRID_API_URL", "https://api.sendgrid.com/v3/mail/send")
	if cfg.EmailRatePerSecond, err = getFloat("EMAIL_RATE_PER_SECOND", "5"); err != nil {
		return nil, err
	}

	// AWS S3
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "eu-west-1")
	cfg.ReportsS3Bucket = getEnv("REPORTS_S3_BUCKET", "")

	return cfg, nil
}

func validateHour(key string, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("invalid %s: must be between 0 and 23, got %d", key, hour)
	}
	return nil
}

// parseChannels splits a comma-separated channel list, dropping blanks and duplicates.
func parseChannels(raw string) ([]string, error) {
	var channels []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		if name != ChannelWhatsApp && name != ChannelEmail {
			return nil, fmt.Errorf("invalid DUNNING_CHANNELS entry: %q", name)
		}
		seen[name] = true
		channels = append(channels, name)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("invalid DUNNING_CHANNELS: at least one channel is required")
	}
	return channels, nil
}
