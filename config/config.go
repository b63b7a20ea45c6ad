package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gambler/settlement/database"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Locking and caching
	RedisAddr   string
	LockBackend string // "memory" or "redis"

	// Event bus configuration
	EventBus     string // "nats", "kafka" or "none"
	NATSServers  string // NATS server addresses (comma-separated)
	KafkaBrokers []string
	KafkaTopic   string

	// JetStream delivery policy for inbound subjects
	NATSAckWait      time.Duration
	NATSMaxDeliver   int
	NATSStreamMaxAge time.Duration

	// Collaborators
	OddsFeedURL      string
	OddsCacheTTL     time.Duration
	WalletGatewayURL string

	// Wager policy
	HouseEdge        decimal.Decimal
	MinStake         int64
	MaxStake         int64
	GamePolicyFile   string
	ReferralFraction decimal.Decimal
	WithdrawFloor    int64

	// Background sweeps
	FundingTimeout      time.Duration
	FundingPollInterval time.Duration
	RoundIdleTimeout    time.Duration
	SweepInterval       time.Duration
	RetryMaxAttempts    int

	// Listeners
	HTTPPort    int
	MetricsPort int
	GRPCPort    int

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables, reading .env first when present
func load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env file")
	}

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Locking and caching
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		LockBackend: getEnvWithDefault("LOCK_BACKEND", "memory"),

		// Event bus
		EventBus:     getEnvWithDefault("EVENT_BUS", "nats"),
		NATSServers:  getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),
		KafkaBrokers: splitList(getEnvWithDefault("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:   getEnvWithDefault("KAFKA_TOPIC", "settlement.events"),

		// Collaborators
		OddsFeedURL:      os.Getenv("ODDS_FEED_URL"),
		WalletGatewayURL: os.Getenv("WALLET_GATEWAY_URL"),
		GamePolicyFile:   os.Getenv("GAME_POLICY_FILE"),

		// Logging
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	var err error
	if config.OddsCacheTTL, err = getDuration("ODDS_CACHE_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if config.HouseEdge, err = getDecimal("HOUSE_EDGE", "0.03"); err != nil {
		return nil, err
	}
	if config.ReferralFraction, err = getDecimal("REFERRAL_FRACTION", "0.01"); err != nil {
		return nil, err
	}
	if config.MinStake, err = getInt64("MIN_STAKE", 100); err != nil {
		return nil, err
	}
	if config.MaxStake, err = getInt64("MAX_STAKE", 100_000_000); err != nil {
		return nil, err
	}
	if config.WithdrawFloor, err = getInt64("WITHDRAW_FLOOR", 1000); err != nil {
		return nil, err
	}
	if config.FundingTimeout, err = getDuration("FUNDING_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if config.FundingPollInterval, err = getDuration("FUNDING_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if config.RoundIdleTimeout, err = getDuration("ROUND_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if config.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if config.NATSAckWait, err = getDuration("NATS_ACK_WAIT", 30*time.Second); err != nil {
		return nil, err
	}
	if config.NATSStreamMaxAge, err = getDuration("NATS_STREAM_MAX_AGE", 7*24*time.Hour); err != nil {
		return nil, err
	}

	ports := []struct {
		key      string
		fallback int64
		target   *int
	}{
		{"RETRY_MAX_ATTEMPTS", 3, &config.RetryMaxAttempts},
		{"NATS_MAX_DELIVER", 5, &config.NATSMaxDeliver},
		{"HTTP_PORT", 8080, &config.HTTPPort},
		{"METRICS_PORT", 9090, &config.MetricsPort},
		{"GRPC_PORT", 9000, &config.GRPCPort},
	}
	for _, p := range ports {
		v, err := getInt64(p.key, p.fallback)
		if err != nil {
			return nil, err
		}
		*p.target = int(v)
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if err := config.validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	// If DatabaseName is provided, ensure it's not empty
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	if c.HouseEdge.IsNegative() || c.HouseEdge.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("HOUSE_EDGE must be in [0, 1), got %s", c.HouseEdge)
	}
	if c.ReferralFraction.IsNegative() || c.ReferralFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("REFERRAL_FRACTION must be in [0, 1], got %s", c.ReferralFraction)
	}
	if c.MinStake <= 0 || c.MaxStake < c.MinStake {
		return fmt.Errorf("stake limits are invalid: min %d, max %d", c.MinStake, c.MaxStake)
	}
	switch c.LockBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	switch c.EventBus {
	case "nats":
		if c.NATSMaxDeliver < 1 || c.NATSAckWait <= 0 {
			return fmt.Errorf("NATS_MAX_DELIVER must be positive and NATS_ACK_WAIT non-zero")
		}
	case "kafka", "none":
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(getEnvWithDefault(key, defaultValue)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:         "test",
		LockBackend:         "memory",
		EventBus:            "none",
		HouseEdge:           decimal.RequireFromString("0.03"),
		ReferralFraction:    decimal.RequireFromString("0.01"),
		MinStake:            10,
		MaxStake:            100_000,
		WithdrawFloor:       500,
		OddsCacheTTL:        5 * time.Second,
		FundingTimeout:      15 * time.Minute,
		FundingPollInterval: time.Second,
		RoundIdleTimeout:    30 * time.Minute,
		SweepInterval:       time.Minute,
		RetryMaxAttempts:    3,
		NATSAckWait:         30 * time.Second,
		NATSMaxDeliver:      5,
		NATSStreamMaxAge:    24 * time.Hour,
		HTTPPort:            8080,
		MetricsPort:         9090,
		GRPCPort:            9000,
		LogLevel:            "debug",
		LogFormat:           "text",
	}
}
