// Package config loads the process configuration from the environment.
// The struct is filled once in main and passed by value; the startup checks
// read it as plain data, so a missing key is "not configured" rather than an
// error here.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	pstrings "custodia/pkg/platform/strings"
)

// Config is the full process configuration.
type Config struct {
	HTTP      HTTP      `envPrefix:"CUSTODIA_HTTP_"`
	PrimaryDB PrimaryDB `envPrefix:"CUSTODIA_PRIMARY_DB_"`
	AuditDB   AuditDB   `envPrefix:"CUSTODIA_AUDIT_DB_"`
	Redis     Redis     `envPrefix:"CUSTODIA_REDIS_"`
	Kafka     Kafka     `envPrefix:"CUSTODIA_KAFKA_"`
	Security  Security  `envPrefix:"CUSTODIA_SECURITY_"`

	Debug    bool   `env:"CUSTODIA_DEBUG"`
	LogLevel string `env:"CUSTODIA_LOG_LEVEL" envDefault:"info"`
}

// HTTP configures the admin API server.
type HTTP struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	// MiddlewareChain is the comma-separated middleware pipeline, outermost
	// first. The security.middleware startup check inspects exactly this
	// value, so the chain the check approves is the chain the server runs.
	MiddlewareChain string `env:"MIDDLEWARE_CHAIN" envDefault:"request-id,request-time,recovery,logging,client-metadata,timeout,content-type,latency,access-control,audit-log"`
}

// MiddlewareEntries returns the configured chain as a trimmed, deduplicated list.
func (h HTTP) MiddlewareEntries() []string {
	return pstrings.SplitList(h.MiddlewareChain)
}

// PrimaryDB configures the application database (subjects, erasure requests).
type PrimaryDB struct {
	// URL is a pgx connection string. Empty means "run on in-memory stores"
	// (local development only).
	URL      string `env:"URL"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
}

// AuditDB configures the physically separate audit database.
type AuditDB struct {
	// URL is a lib/pq DSN. Empty means "run on the in-memory audit store"
	// (local development only).
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// Redis configures the distributed decision lock. Empty Addr falls back to
// in-process locks.
type Redis struct {
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"30s"`
}

// Kafka configures the SIEM relay producer and the foreign-event ingest
// consumer. Empty Brokers disables both.
type Kafka struct {
	Brokers     string `env:"BROKERS"`
	RelayTopic  string `env:"RELAY_TOPIC" envDefault:"custodia.audit.compliance"`
	IngestTopic string `env:"INGEST_TOPIC" envDefault:"custodia.audit.ingest"`
	IngestGroup string `env:"INGEST_GROUP" envDefault:"custodia-audit-ingest"`
}

// BrokerList returns the configured brokers as a normalized list.
func (k Kafka) BrokerList() []string {
	return pstrings.SplitList(k.Brokers)
}

// Security holds the values the startup invariant checks inspect.
type Security struct {
	// EncryptionKey is the urlsafe-base64, 32-byte column-encryption key.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	// JWTSigningKey signs admin access tokens. The default is for local
	// development and must be overridden in any real deployment.
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	// PasswordHashers is the comma-separated hasher preference order; the
	// first entry hashes new passwords, the rest verify old ones.
	PasswordHashers     string `env:"PASSWORD_HASHERS" envDefault:"argon2id,scrypt,bcrypt,pbkdf2_sha256"`
	SessionCookieSecure bool   `env:"SESSION_COOKIE_SECURE"`
	CSRFCookieSecure    bool   `env:"CSRF_COOKIE_SECURE"`
}

// HasherOrder returns the configured hashers as a trimmed, deduplicated list.
func (s Security) HasherOrder() []string {
	return pstrings.SplitList(s.PasswordHashers)
}

// FromEnv builds the Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
