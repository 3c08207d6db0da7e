package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/core-coin/liqnotify/pkg/validation"
)

const (
	StoreDriverJSON     = "json"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Development bool
	// API configuration, 0 disables the status server
	APIPort int

	// Blockchain configuration
	Chain     validation.Chain
	WSURL     string
	NetworkID *big.Int
	// LookupTimeout bounds a single symbol() call
	LookupTimeout time.Duration

	// Discord configuration
	BotToken       string
	NotifyCategory string
	NotifyChannel  string
	// CommandRatePerMinute is the per-user allowance for !liq commands
	CommandRatePerMinute int

	// Storage configuration
	StoreDriver            string
	SubscriptionsPath      string
	WatchSubscriptionsFile bool
	PostgresUser           string
	PostgresPassword       string
	PostgresHost           string
	PostgresPort           int
	PostgresDB             string

	// Telegram mirror configuration, optional
	TelegramBotToken string
	TelegramChatID   string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	chain, err := validation.ParseChain(getEnv("CHAIN", string(validation.ChainEVM)))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAIN: %w", err)
	}

	cfg := &Config{
		Development:          getEnvAsBool("DEVELOPMENT", false),
		APIPort:              getEnvAsInt("API_PORT", 6532),
		Chain:                chain,
		WSURL:                getEnv("WS_URL", ""),
		NetworkID:            getEnvAsBigInt("NETWORK_ID", big.NewInt(1)),
		LookupTimeout:        getEnvAsDuration("LOOKUP_TIMEOUT", 15*time.Second),
		BotToken:             getEnv("BOT_TOKEN", ""),
		NotifyCategory:       getEnv("NOTIFY_CATEGORY", "🟣polygon 🟣"),
		NotifyChannel:        getEnv("NOTIFY_CHANNEL", "🔥new-tokens"),
		CommandRatePerMinute: getEnvAsInt("COMMAND_RATE_PER_MIN", 6),

		StoreDriver:            getEnv("STORE_DRIVER", StoreDriverJSON),
		SubscriptionsPath:      getEnv("SUBSCRIPTIONS_PATH", "./data/subscriptions.json"),
		WatchSubscriptionsFile: getEnvAsBool("WATCH_SUBSCRIPTIONS_FILE", true),
		PostgresUser:           getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:       getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:           getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:           getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:             getEnv("POSTGRES_DB", "liqnotify"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set.
// It is called after command line overrides have been applied.
func (c *Config) Validate() error {
	if c.WSURL == "" {
		return fmt.Errorf("WS_URL is required")
	}

	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}

	if _, err := validation.AddressPattern(c.Chain); err != nil {
		return fmt.Errorf("invalid CHAIN: %w", err)
	}

	if c.NotifyCategory == "" || c.NotifyChannel == "" {
		return fmt.Errorf("NOTIFY_CATEGORY and NOTIFY_CHANNEL are required")
	}

	if c.LookupTimeout <= 0 {
		return fmt.Errorf("LOOKUP_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case StoreDriverJSON:
		if c.SubscriptionsPath == "" {
			return fmt.Errorf("SUBSCRIPTIONS_PATH is required for the json store")
		}
	case StoreDriverPostgres:
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	return nil
}

// TelegramEnabled reports whether the Telegram mirror is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBigInt(name string, defaultValue *big.Int) *big.Int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, ok := new(big.Int).SetString(valueStr, 10); ok {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
