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
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// SecurityConfig carries every tunable of the trust core. Components receive
// it (or a slice of it) at construction; there is no package-level state.
type SecurityConfig struct {
	// Login guard
	MaxLoginAttempts    int
	LoginAttemptWindow  time.Duration
	LockoutDuration     time.Duration

	// Claim tokens
	TokenTTL            time.Duration
	MaxTokensPerMinute  int
	MinWatchSeconds     int
	MaxWatchSeconds     int
	NominalAdSeconds    int
	PointsPerView       int
	DailyClaimLimit     int

	// Fraud signals
	MaxAdsPerHour        int
	MaxAdsPerDay         int
	MaxDevicesPerAccount int
	MaxAccountsPerIP     int

	// Risk thresholds
	LowRiskThreshold    float64
	MediumRiskThreshold float64
	HighRiskThreshold   float64
	WarningThreshold    int
	BanThreshold        int
	SuspensionDuration  time.Duration

	// Background maintenance
	CleanupInterval  time.Duration
	RescoreInterval  time.Duration
	RescoreBatchSize int
	AttemptRetention time.Duration
	TokenRetention   time.Duration
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "trustcore"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		},
		Security: SecurityConfig{
			MaxLoginAttempts:   getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LoginAttemptWindow: getEnvAsDuration("LOGIN_ATTEMPT_WINDOW", 30*time.Minute),
			LockoutDuration:    getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),

			TokenTTL:           getEnvAsDuration("TOKEN_TTL", 5*time.Minute),
			MaxTokensPerMinute: getEnvAsInt("MAX_TOKENS_PER_MINUTE", 3),
			MinWatchSeconds:    getEnvAsInt("MIN_WATCH_SECONDS", 25),
			MaxWatchSeconds:    getEnvAsInt("MAX_WATCH_SECONDS", 120),
			NominalAdSeconds:   getEnvAsInt("NOMINAL_AD_SECONDS", 30),
			PointsPerView:      getEnvAsInt("POINTS_PER_VIEW", 5),
			DailyClaimLimit:    getEnvAsInt("DAILY_CLAIM_LIMIT", 50),

			MaxAdsPerHour:        getEnvAsInt("MAX_ADS_PER_HOUR", 30),
			MaxAdsPerDay:         getEnvAsInt("MAX_ADS_PER_DAY", 50),
			MaxDevicesPerAccount: getEnvAsInt("MAX_DEVICES_PER_ACCOUNT", 3),
			MaxAccountsPerIP:     getEnvAsInt("MAX_ACCOUNTS_PER_IP", 5),

			LowRiskThreshold:    getEnvAsFloat("LOW_RISK_THRESHOLD", 0.30),
			MediumRiskThreshold: getEnvAsFloat("MEDIUM_RISK_THRESHOLD", 0.60),
			HighRiskThreshold:   getEnvAsFloat("HIGH_RISK_THRESHOLD", 0.85),
			WarningThreshold:    getEnvAsInt("WARNING_THRESHOLD", 3),
			BanThreshold:        getEnvAsInt("BAN_THRESHOLD", 5),
			SuspensionDuration:  getEnvAsDuration("SUSPENSION_DURATION", 24*time.Hour),

			CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			RescoreInterval:  getEnvAsDuration("RESCORE_INTERVAL", 6*time.Hour),
			RescoreBatchSize: getEnvAsInt("RESCORE_BATCH_SIZE", 500),
			AttemptRetention: getEnvAsDuration("ATTEMPT_RETENTION", 24*time.Hour),
			TokenRetention:   getEnvAsDuration("TOKEN_RETENTION", 24*time.Hour),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.Validate(); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED=true")
	}

	return cfg, nil
}

// Validate rejects threshold combinations that would make the trust state
// machine unreachable or inverted.
func (c *SecurityConfig) Validate() error {
	if c.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.MinWatchSeconds > c.MaxWatchSeconds {
		return fmt.Errorf("MIN_WATCH_SECONDS (%d) cannot exceed MAX_WATCH_SECONDS (%d)",
			c.MinWatchSeconds, c.MaxWatchSeconds)
	}
	if !(c.LowRiskThreshold < c.MediumRiskThreshold && c.MediumRiskThreshold < c.HighRiskThreshold) {
		return fmt.Errorf("risk thresholds must be strictly increasing: low=%.2f medium=%.2f high=%.2f",
			c.LowRiskThreshold, c.MediumRiskThreshold, c.HighRiskThreshold)
	}
	if c.HighRiskThreshold > 1.0 {
		return fmt.Errorf("HIGH_RISK_THRESHOLD must be within [0,1]")
	}
	if c.WarningThreshold >= c.BanThreshold {
		return fmt.Errorf("WARNING_THRESHOLD (%d) must be below BAN_THRESHOLD (%d)",
			c.WarningThreshold, c.BanThreshold)
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
