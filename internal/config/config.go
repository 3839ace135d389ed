package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Repository selects lead persistence: postgres, dynamodb, or memory.
	Repository  string
	DatabaseURL string
	LeadsTable  string

	UseMemoryQueue bool
	IntakeQueueURL string
	WorkerCount    int

	AdminJWTSecret      string
	CORSAllowedOrigins  []string
	IntakeRatePerSecond float64
	IntakeBurst         int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	PolicyCacheTTL time.Duration

	// LLMProvider selects the classifier backend: bedrock or gemini. When
	// both are configured, the other acts as fallback.
	LLMProvider    string
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string

	// EmailProvider selects outbound mail: sendgrid, ses, or stub.
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	SupportInbox      string
	AccountTeamInbox  string

	// ArchiveBucket enables S3 audit snapshots when set.
	ArchiveBucket string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		Repository:  strings.ToLower(strings.TrimSpace(getEnv("LEADS_REPOSITORY", "postgres"))),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		LeadsTable:  getEnv("LEADS_TABLE", "leads"),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		IntakeQueueURL: getEnv("INTAKE_QUEUE_URL", ""),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		AdminJWTSecret:      getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		IntakeRatePerSecond: getEnvAsFloat("INTAKE_RATE_PER_SECOND", 2),
		IntakeBurst:         getEnvAsInt("INTAKE_BURST", 10),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		PolicyCacheTTL: getEnvAsDuration("POLICY_CACHE_TTL", 30*time.Second),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-haiku-20241022-v1:0"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "LeadGate"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "LeadGate"),
		SupportInbox:      getEnv("SUPPORT_INBOX", "support@leadgate.ai"),
		AccountTeamInbox:  getEnv("ACCOUNT_TEAM_INBOX", "accounts@leadgate.ai"),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
