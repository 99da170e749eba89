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
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	MongoURI             string
	MongoDatabase        string
	MongoCasesCollection string
	MongoUsersCollection string

	JWTSecret     string
	JWTAlgorithm  string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	MaxLoginAttempts       int
	RateLimitWindowMinutes int
	RateLimitRPM           int
	AuthRateLimitRPM       int

	RecaptchaEnabled        bool
	RecaptchaSecretKey      string
	RecaptchaScoreThreshold float64
	RecaptchaVerifyURL      string
	RecaptchaTimeout        time.Duration

	InstanceQualifiedDNS string
	CORSOrigins          []string
	LogLevel             string
	LogFormat            string
	TrustProxyHeaders    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "1938"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 1)),

		MongoURI:             strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:        getEnv("MONGO_DATABASE", "auxilium"),
		MongoCasesCollection: getEnv("MONGO_CASES_COLLECTION", "Cases"),
		MongoUsersCollection: getEnv("MONGO_USERS_COLLECTION", "Users"),

		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAlgorithm:  strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
		JWTAccessTTL:  getDuration("JWT_ACCESS_TTL", 30*time.Minute),
		JWTRefreshTTL: getDuration("JWT_REFRESH_TTL", 168*time.Hour),

		MaxLoginAttempts:       getInt("MAX_LOGIN_ATTEMPTS", 5),
		RateLimitWindowMinutes: getInt("RATE_LIMIT_WINDOW_MINUTES", 15),
		RateLimitRPM:           getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:       getInt("AUTH_RATE_LIMIT_RPM", 30),

		RecaptchaEnabled:        getBool("RECAPTCHA_ENABLED", true),
		RecaptchaSecretKey:      strings.TrimSpace(os.Getenv("RECAPTCHA_SECRET_KEY")),
		RecaptchaScoreThreshold: getFloat("RECAPTCHA_SCORE_THRESHOLD", 0.5),
		RecaptchaVerifyURL:      getEnv("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		RecaptchaTimeout:        getDuration("RECAPTCHA_TIMEOUT", 10*time.Second),

		InstanceQualifiedDNS: strings.TrimSpace(os.Getenv("INSTANCE_QUALIFIED_DNS")),
		CORSOrigins:          splitCSV(getEnv("CORS_ORIGINS", "*")),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TrustProxyHeaders:    getBool("TRUST_PROXY_HEADERS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are inconsistent")
	}

	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM %q is not supported", c.JWTAlgorithm)
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	if c.MaxLoginAttempts <= 0 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be positive")
	}

	if c.RateLimitWindowMinutes <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_MINUTES must be positive")
	}

	if c.RecaptchaEnabled {
		if c.RecaptchaSecretKey == "" {
			return fmt.Errorf("RECAPTCHA_SECRET_KEY is required when RECAPTCHA_ENABLED is true")
		}
		if c.RecaptchaScoreThreshold < 0 || c.RecaptchaScoreThreshold > 1 {
			return fmt.Errorf("RECAPTCHA_SCORE_THRESHOLD must be between 0 and 1")
		}
	}

	if c.InstanceQualifiedDNS == "" {
		return fmt.Errorf("INSTANCE_QUALIFIED_DNS is required")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
