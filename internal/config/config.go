package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	DBDriver    string // postgres | sqlite
	PostgresDSN string
	SQLitePath  string

	SigningPrivateKeyBase64   string
	SigningPrivateKeySeedHex  string
	PreviousPrivateKeyBase64  string
	PreviousPrivateKeySeedHex string

	SnapshotThreshold    int
	SnapshotRetention    int
	SnapshotCheckSeconds int

	ObjectStoreBackend string // memory | redis
	ObjectStorePrefix  string

	ArchiveBaseURL          string
	ArchiveAPIKey           string
	ArchiveTimeoutSeconds   int
	ArchiveRepublishSeconds int

	VerifyToleranceHours int
	SourceTimeoutSeconds int
	CacheTTLSeconds      int

	AuditIntervalDays   int
	AuditProofThreshold int
	AuditRunLimit       int
	AuditCheckSeconds   int

	AdminAPIKey      string
	PolicyBundlePath string
	PolicyBundleID   string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                  addr,
		LogLevel:                  envDefault("LOG_LEVEL", "info"),
		DBDriver:                  envDefault("DB_DRIVER", "postgres"),
		PostgresDSN:               os.Getenv("POSTGRES_DSN"),
		SQLitePath:                envDefault("SQLITE_PATH", "certus.db"),
		SigningPrivateKeyBase64:   os.Getenv("SIGNING_PRIVATE_KEY_BASE64"),
		SigningPrivateKeySeedHex:  os.Getenv("SIGNING_PRIVATE_KEY_SEED_HEX"),
		PreviousPrivateKeyBase64:  os.Getenv("PREVIOUS_PRIVATE_KEY_BASE64"),
		PreviousPrivateKeySeedHex: os.Getenv("PREVIOUS_PRIVATE_KEY_SEED_HEX"),
		SnapshotThreshold:         envIntDefault("SNAPSHOT_THRESHOLD", 1000),
		SnapshotRetention:         envIntDefault("SNAPSHOT_RETENTION", 0),
		SnapshotCheckSeconds:      envIntDefault("SNAPSHOT_CHECK_SECONDS", 60),
		ObjectStoreBackend:        envDefault("OBJECT_STORE_BACKEND", "memory"),
		ObjectStorePrefix:         envDefault("OBJECT_STORE_PREFIX", "certus"),
		ArchiveBaseURL:            os.Getenv("ARCHIVE_BASE_URL"),
		ArchiveAPIKey:             os.Getenv("ARCHIVE_API_KEY"),
		ArchiveTimeoutSeconds:     envIntDefault("ARCHIVE_TIMEOUT_SECONDS", 30),
		ArchiveRepublishSeconds:   envIntDefault("ARCHIVE_REPUBLISH_SECONDS", 60),
		VerifyToleranceHours:      envIntDefault("VERIFY_TOLERANCE_HOURS", 24),
		SourceTimeoutSeconds:      envIntDefault("SOURCE_TIMEOUT_SECONDS", 5),
		CacheTTLSeconds:           envIntDefault("CACHE_TTL_SECONDS", 3600),
		AuditIntervalDays:         envIntDefault("AUDIT_INTERVAL_DAYS", 7),
		AuditProofThreshold:       envIntDefault("AUDIT_PROOF_THRESHOLD", 1000),
		AuditRunLimit:             envIntDefault("AUDIT_RUN_LIMIT", 1000),
		AuditCheckSeconds:         envIntDefault("AUDIT_CHECK_SECONDS", 3600),
		AdminAPIKey:               os.Getenv("ADMIN_API_KEY"),
		PolicyBundlePath:          os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:            envDefault("POLICY_BUNDLE_ID", "issuance"),
		RateLimitRequests:         envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:    envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:       envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) VerifyTolerance() time.Duration {
	return time.Duration(c.VerifyToleranceHours) * time.Hour
}

func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutSeconds) * time.Second
}

func (c Config) AuditInterval() time.Duration {
	return time.Duration(c.AuditIntervalDays) * 24 * time.Hour
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
