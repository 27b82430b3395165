package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend selectors.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendChain    = "chain"
)

// Delivery channels.
const (
	ChannelLog   = "log"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var (
	ErrMissingSigningKey      = errors.New("JWT_SIGNING_KEY is required")
	ErrMissingAnonymizerKey   = errors.New("ANONYMIZER_SECRET is required")
	ErrMissingRedisURL        = errors.New("REDIS_URL is required for the redis backend")
	ErrMissingPostgresDSN     = errors.New("DATABASE_URL is required for the postgres backend")
	ErrMissingChainSigningKey = errors.New("CHAIN_SIGNING_KEY is required for the chain ledger")
)

// Config is the full process configuration.
type Config struct {
	Server       Server
	Auth         Auth
	Verification Verification
	Anonymizer   Anonymizer
	Backends     Backends
	Redis        RedisConfig
	Postgres     PostgresConfig
	Audit        Audit
	Delivery     Delivery
	Chain        Chain
	LogLevel     string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr      string
	AdminRole string
}

// Auth configures the token issuer.
type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

// Verification configures one-time code sessions and identity throttling.
type Verification struct {
	CodeTTL            time.Duration
	MaxAttempts        int
	IdentityRateLimit  int
	IdentityRateWindow time.Duration
	SweepSchedule      string
}

// Anonymizer holds the voter-handle secret and the active election cycle.
type Anonymizer struct {
	Secret  string
	CycleID string
}

// Backends selects storage implementations.
type Backends struct {
	Store  string
	Ledger string
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the SQL pool.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Audit configures the non-blocking audit publisher and the Kafka relay.
type Audit struct {
	BufferSize     int
	Workers        int
	KafkaBrokers   []string
	KafkaTopic     string
	OutboxInterval time.Duration
}

// Delivery configures the code delivery channel.
type Delivery struct {
	Channel          string
	SendGridAPIKey   string
	EmailFrom        string
	EmailFromName    string
	SendGridSandbox  bool
	TwilioAccountSID string
	TwilioAuthToken  string
	SMSFrom          string
}

// Chain configures the hash-chained ledger backend.
type Chain struct {
	SigningKeyHex string
	BlockSize     int
}

// FromEnv builds a Config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:      getEnv("UNIONVOTE_ADDR", ":8080"),
			AdminRole: getEnv("ADMIN_ROLE", "ADMIN"),
		},
		Auth: Auth{
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:        getEnv("JWT_ISSUER", "unionvote"),
			Audience:      getEnv("JWT_AUDIENCE", "unionvote-api"),
			TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),
		},
		Verification: Verification{
			CodeTTL:            getDuration("OTC_TTL", 5*time.Minute),
			MaxAttempts:        getInt("OTC_MAX_ATTEMPTS", 5),
			IdentityRateLimit:  getInt("IDENTITY_RATE_LIMIT", 5),
			IdentityRateWindow: getDuration("IDENTITY_RATE_WINDOW", 15*time.Minute),
			SweepSchedule:      getEnv("SESSION_SWEEP_SCHEDULE", "@every 1m"),
		},
		Anonymizer: Anonymizer{
			Secret:  os.Getenv("ANONYMIZER_SECRET"),
			CycleID: getEnv("ELECTION_CYCLE", "default"),
		},
		Backends: Backends{
			Store:  getEnv("STORE_BACKEND", BackendMemory),
			Ledger: getEnv("LEDGER_BACKEND", BackendMemory),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 20),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Audit: Audit{
			BufferSize:     getInt("AUDIT_BUFFER_SIZE", 1024),
			Workers:        getInt("AUDIT_WORKERS", 2),
			KafkaBrokers:   getList("AUDIT_KAFKA_BROKERS"),
			KafkaTopic:     getEnv("AUDIT_KAFKA_TOPIC", "unionvote.audit"),
			OutboxInterval: getDuration("AUDIT_OUTBOX_INTERVAL", 2*time.Second),
		},
		Delivery: Delivery{
			Channel:          getEnv("DELIVERY_CHANNEL", ChannelLog),
			SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
			EmailFrom:        getEnv("EMAIL_FROM", "no-reply@unionvote.local"),
			EmailFromName:    getEnv("EMAIL_FROM_NAME", "Union Elections"),
			SendGridSandbox:  os.Getenv("SENDGRID_SANDBOX") == "true",
			TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			SMSFrom:          os.Getenv("TWILIO_FROM"),
		},
		Chain: Chain{
			SigningKeyHex: os.Getenv("CHAIN_SIGNING_KEY"),
			BlockSize:     getInt("CHAIN_BLOCK_SIZE", 16),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports fatal configuration problems. Missing secrets are never
// defaulted.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, ErrMissingSigningKey)
	}
	if c.Anonymizer.Secret == "" {
		errs = append(errs, ErrMissingAnonymizerKey)
	}
	usesRedis := c.Backends.Store == BackendRedis || c.Backends.Ledger == BackendRedis
	if usesRedis && c.Redis.URL == "" {
		errs = append(errs, ErrMissingRedisURL)
	}
	usesPostgres := c.Backends.Store == BackendPostgres || c.Backends.Ledger == BackendPostgres
	if usesPostgres && c.Postgres.DSN == "" {
		errs = append(errs, ErrMissingPostgresDSN)
	}
	if c.Backends.Ledger == BackendChain && c.Chain.SigningKeyHex == "" {
		errs = append(errs, ErrMissingChainSigningKey)
	}
	if c.Verification.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("OTC_MAX_ATTEMPTS must be positive, got %d", c.Verification.MaxAttempts))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
