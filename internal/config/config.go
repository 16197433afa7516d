package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Code store backends selectable with CODE_STORE.
const (
	CodeStoreMemory = "memory"
	CodeStoreRedis  = "redis"
	CodeStoreDynamo = "dynamo"
)

// Notifier channels selectable with NOTIFIER.
const (
	NotifierSMTP = "smtp"
	NotifierSNS  = "sns"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	Verification Verification

	CodeStore     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Notifier     string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	SNSTopicARN  string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	VerificationCodes string
}

// Verification groups the confirmation-code settings.
type Verification struct {
	CodeLength int
	CodeTTL    time.Duration
	// ExpiredRetention is how long an expired code is kept so late redemptions
	// report "expired" instead of "not found".
	ExpiredRetention time.Duration
	KeyPrefix        string
	MailFrom         string
	MailSubject      string
	MailBodyTemplate string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
		},
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		Verification: Verification{
			CodeLength:       getEnvInt("CODE_LENGTH", 6),
			CodeTTL:          getEnvDuration("CODE_TTL", 300*time.Second),
			ExpiredRetention: getEnvDuration("CODE_EXPIRED_RETENTION", time.Hour),
			KeyPrefix:        getEnv("CODE_KEY_PREFIX", "verification:code:"),
			MailFrom:         getEnv("MAIL_FROM", "YaReviewApp@example.com"),
			MailSubject:      getEnv("MAIL_SUBJECT", "Confirm account"),
			MailBodyTemplate: getEnv("MAIL_BODY_TEMPLATE", "Please confirm your account with code: {{.Code}}"),
		},
		CodeStore:      strings.ToLower(getEnv("CODE_STORE", CodeStoreMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		Notifier:       strings.ToLower(getEnv("NOTIFIER", NotifierSMTP)),
		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnv("SMTP_PORT", "1025"),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:    getEnv("SNS_TOPIC_ARN", ""),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	v := c.Verification
	if v.CodeLength < 4 || v.CodeLength > 12 {
		return fmt.Errorf("CODE_LENGTH must be between 4 and 12, got %d", v.CodeLength)
	}
	if v.CodeTTL <= 0 {
		return fmt.Errorf("CODE_TTL must be positive, got %s", v.CodeTTL)
	}
	if v.ExpiredRetention < 0 {
		return fmt.Errorf("CODE_EXPIRED_RETENTION must not be negative, got %s", v.ExpiredRetention)
	}
	switch c.CodeStore {
	case CodeStoreMemory, CodeStoreRedis, CodeStoreDynamo:
	default:
		return fmt.Errorf("unknown CODE_STORE %q", c.CodeStore)
	}
	switch c.Notifier {
	case NotifierSMTP:
	case NotifierSNS:
		if c.SNSTopicARN == "" {
			return fmt.Errorf("SNS_TOPIC_ARN is required when NOTIFIER=sns")
		}
	default:
		return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5m") or plain seconds ("300").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
