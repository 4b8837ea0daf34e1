// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends for the profile and journal.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config is the full service configuration.
type Config struct {
	Server    Server
	Verifier  VerifierConfig
	Ledger    LedgerConfig
	Catalog   CatalogConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Sweeper   SweeperConfig
	RateLimit RateLimitConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	JWTSigningKey   string
	JWTIssuer       string
	IssueTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// VerifierConfig points at the certificate verification service.
type VerifierConfig struct {
	URL              string
	APIKey           string
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// LedgerConfig describes the badge contract and the node that holds user accounts.
type LedgerConfig struct {
	RPCURL          string
	ContractAddress string
	GasLimit        uint64
	SubmitTimeout   time.Duration
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
}

// CatalogConfig locates the badge catalog and the content gateway.
type CatalogConfig struct {
	File    string
	Gateway string
}

// StoreConfig selects where profiles and attempts live. SeedWallets links
// user handles to wallets in the memory profile store for local runs.
type StoreConfig struct {
	Profiles    string
	Attempts    string
	SeedWallets map[string]string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// RedisConfig enables the distributed issuance guard when URL is set.
// GuardTTL must outlast an attempt; see Config.AttemptBudget.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	GuardTTL     time.Duration
}

// KafkaConfig enables the audit Kafka sink when Brokers is set.
type KafkaConfig struct {
	Brokers         string
	AuditTopic      string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

type SweeperConfig struct {
	Enabled   bool
	Schedule  string
	MinAge    time.Duration
	BatchSize int
}

// RateLimitConfig caps certificate uploads per user. Uploads <= 0 disables it.
// The limiter is shared through Redis when REDIS_URL is set.
type RateLimitConfig struct {
	Uploads int
	Window  time.Duration
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getEnv("SKILLBADGE_ADDR", ":8080"),
			Environment:     getEnv("SKILLBADGE_ENV", "development"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:       os.Getenv("JWT_ISSUER"),
			IssueTimeout:    getDuration("ISSUE_TIMEOUT", 3*time.Minute),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Verifier: VerifierConfig{
			URL:              os.Getenv("VERIFIER_URL"),
			APIKey:           os.Getenv("VERIFIER_API_KEY"),
			Timeout:          getDuration("VERIFIER_TIMEOUT", 30*time.Second),
			FailureThreshold: getInt("VERIFIER_FAILURE_THRESHOLD", 5),
			Cooldown:         getDuration("VERIFIER_COOLDOWN", 30*time.Second),
		},
		Ledger: LedgerConfig{
			RPCURL:          os.Getenv("LEDGER_RPC_URL"),
			ContractAddress: os.Getenv("BADGE_CONTRACT_ADDRESS"),
			GasLimit:        uint64(getInt("LEDGER_GAS_LIMIT", 200000)),
			SubmitTimeout:   getDuration("LEDGER_SUBMIT_TIMEOUT", 30*time.Second),
			ConfirmTimeout:  getDuration("LEDGER_CONFIRM_TIMEOUT", 2*time.Minute),
			PollInterval:    getDuration("LEDGER_POLL_INTERVAL", 2*time.Second),
		},
		Catalog: CatalogConfig{
			File:    os.Getenv("BADGE_CATALOG_FILE"),
			Gateway: os.Getenv("IPFS_GATEWAY"),
		},
		Store: StoreConfig{
			Profiles:    getEnv("PROFILE_STORE", BackendMemory),
			Attempts:    getEnv("ATTEMPT_STORE", BackendMemory),
			SeedWallets: getPairs("SEED_WALLETS"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: getEnv("MONGO_DATABASE", "skillbadge"),
			Timeout:  getDuration("MONGO_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			GuardTTL:     getDuration("ISSUANCE_GUARD_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			AuditTopic:      getEnv("KAFKA_AUDIT_TOPIC", "badge.audit"),
			Acks:            getEnv("KAFKA_ACKS", "all"),
			Retries:         getInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: getDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
		Sweeper: SweeperConfig{
			Enabled:   getEnv("SWEEPER_ENABLED", "true") == "true",
			Schedule:  getEnv("SWEEPER_SCHEDULE", "@every 5m"),
			MinAge:    getDuration("SWEEPER_MIN_AGE", 5*time.Minute),
			BatchSize: getInt("SWEEPER_BATCH_SIZE", 50),
		},
		RateLimit: RateLimitConfig{
			Uploads: getInt("UPLOAD_RATE_LIMIT", 10),
			Window:  getDuration("UPLOAD_RATE_WINDOW", time.Hour),
		},
	}
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Verifier.URL == "" {
		errs = append(errs, errors.New("VERIFIER_URL is required"))
	}
	if c.Ledger.RPCURL == "" {
		errs = append(errs, errors.New("LEDGER_RPC_URL is required"))
	}
	if c.Ledger.ContractAddress == "" {
		errs = append(errs, errors.New("BADGE_CONTRACT_ADDRESS is required"))
	}
	for _, backend := range []struct{ name, value string }{
		{"PROFILE_STORE", c.Store.Profiles},
		{"ATTEMPT_STORE", c.Store.Attempts},
	} {
		switch backend.value {
		case BackendMemory:
		case BackendPostgres:
			if c.Database.URL == "" {
				errs = append(errs, errors.New(backend.name+"=postgres requires DATABASE_URL"))
			}
		case BackendMongo:
			if backend.name == "ATTEMPT_STORE" {
				errs = append(errs, errors.New("ATTEMPT_STORE does not support mongo"))
			} else if c.Mongo.URI == "" {
				errs = append(errs, errors.New(backend.name+"=mongo requires MONGO_URI"))
			}
		default:
			errs = append(errs, errors.New(backend.name+" must be one of memory, postgres, mongo"))
		}
	}
	if c.Redis.URL != "" && c.Redis.GuardTTL <= c.AttemptBudget() {
		errs = append(errs, fmt.Errorf("ISSUANCE_GUARD_TTL must exceed %s (verifier, submit and confirm timeouts plus %s for persistence)",
			c.AttemptBudget(), persistAllowance))
	}
	if c.RateLimit.Uploads > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("UPLOAD_RATE_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// persistAllowance covers journaling and the profile write after confirmation.
const persistAllowance = time.Minute

// AttemptBudget is the longest one issuance attempt can hold the user's guard.
func (c Config) AttemptBudget() time.Duration {
	return c.Verifier.Timeout + c.Ledger.SubmitTimeout + c.Ledger.ConfirmTimeout + persistAllowance
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
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

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getPairs parses "k1=v1,k2=v2". Malformed pairs are skipped.
func getPairs(key string) map[string]string {
	pairs := map[string]string{}
	for _, item := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		pairs[k] = v
	}
	return pairs
}
