package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	AppEnv      string
	LogLevel    string
	LogFormat   string
	SwaggerHost string

	Storage           string
	MySQLDSN          string
	LockWaitTimeout   int
	TransferRetries   int
	TransferRetryBase time.Duration

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret string

	// CardKeys maps a key version to a 32-byte AES key.
	CardKeys      map[byte][]byte
	CardKeyActive byte
	CardSecret    string

	SweepSchedule string
	SweepOnStart  bool

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),

		Storage:           getEnv("STORAGE", "mysql"),
		MySQLDSN:          getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/cards?charset=utf8mb4&parseTime=True&loc=UTC"),
		LockWaitTimeout:   getEnvInt("DB_LOCK_WAIT_TIMEOUT", 5),
		TransferRetries:   getEnvInt("TRANSFER_RETRY_ATTEMPTS", 3),
		TransferRetryBase: getEnvDuration("TRANSFER_RETRY_BASE", 50*time.Millisecond),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisPass: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		CardSecret: os.Getenv("CARD_SECRET"),

		SweepSchedule: getEnv("SWEEP_SCHEDULE", "0 0 0 * * *"),
		SweepOnStart:  getEnv("SWEEP_ON_START", "false") == "true",

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@cardvault.local"),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@cardvault.local"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}

	keys, err := parseCardKeys(os.Getenv("CARD_KEYS"))
	if err != nil {
		return nil, err
	}
	cfg.CardKeys = keys

	active := getEnvInt("CARD_KEY_ACTIVE", 0)
	if active < 0 || active > 255 {
		return nil, fmt.Errorf("CARD_KEY_ACTIVE out of range: %d", active)
	}
	cfg.CardKeyActive = byte(active)

	if len(cfg.CardKeys) == 0 {
		if !cfg.IsDevelopment() || cfg.CardSecret == "" {
			return nil, fmt.Errorf("CARD_KEYS is required outside development (CARD_SECRET is accepted in development only)")
		}
	} else if _, ok := cfg.CardKeys[cfg.CardKeyActive]; !ok {
		return nil, fmt.Errorf("CARD_KEY_ACTIVE %d has no key in CARD_KEYS", cfg.CardKeyActive)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// parseCardKeys parses "1:<hex>,2:<hex>" into versioned AES-256 keys.
func parseCardKeys(raw string) (map[byte][]byte, error) {
	keys := make(map[byte][]byte)
	if strings.TrimSpace(raw) == "" {
		return keys, nil
	}
	for _, part := range strings.Split(raw, ",") {
		version, encoded, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("CARD_KEYS entry %q: expected <version>:<hex>", part)
		}
		v, err := strconv.Atoi(version)
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("CARD_KEYS entry %q: invalid version", part)
		}
		key, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("CARD_KEYS entry %q: %w", part, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("CARD_KEYS entry %q: key must be 32 bytes, got %d", part, len(key))
		}
		keys[byte(v)] = key
	}
	return keys, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
