package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/subvia/subscriptor/internal/models"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Ledger configuration
	LedgerRestAPIURL  string
	LedgerJSONRPCURL  string
	BurnAddress       models.Address
	GenesisWallet     models.Address
	SubscriptionPrice int64
	HistoryPageLimit  int
	// Keeper configuration
	KeeperInterval time.Duration
	// Community Oracle configuration
	CommunityOracleURL string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Notification configuration
	TelegramBotToken string

	// raw address strings, kept for flag overrides before validation
	BurnAddressHex   string
	GenesisWalletHex string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "subscriptor"),

		LedgerRestAPIURL:  getEnv("LEDGER_REST_API_URL", "http://localhost:3001"),
		LedgerJSONRPCURL:  getEnv("LEDGER_JSON_RPC_URL", "http://localhost:3030"),
		BurnAddressHex:    getEnv("BURN_ACCOUNT_ADDRESS", ""),
		GenesisWalletHex:  getEnv("GENESIS_WALLET_ADDRESS", ""),
		SubscriptionPrice: getEnvAsInt64("SUBSCRIPTION_PRICE", 100),
		HistoryPageLimit:  getEnvAsInt("HISTORY_PAGE_LIMIT", 40),

		KeeperInterval: time.Duration(getEnvAsInt("KEEPER_INTERVAL_SECONDS", 300)) * time.Second,

		CommunityOracleURL: getEnv("COMMUNITY_ORACLE_URL", "http://localhost:8734"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPSender:       getEnv("SMTP_SENDER", ""),

		APIPort: getEnvAsInt("API_PORT", 8080),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
// and parses the address fields.
func (c *Config) Validate() error {
	if c.BurnAddressHex == "" {
		return fmt.Errorf("BURN_ACCOUNT_ADDRESS is required")
	}
	burnAddress, err := models.ParseAddress(c.BurnAddressHex)
	if err != nil {
		return fmt.Errorf("invalid BURN_ACCOUNT_ADDRESS format: %w", err)
	}
	c.BurnAddress = burnAddress

	if c.GenesisWalletHex == "" {
		return fmt.Errorf("GENESIS_WALLET_ADDRESS is required")
	}
	genesisWallet, err := models.ParseAddress(c.GenesisWalletHex)
	if err != nil {
		return fmt.Errorf("invalid GENESIS_WALLET_ADDRESS format: %w", err)
	}
	c.GenesisWallet = genesisWallet

	if c.LedgerRestAPIURL == "" {
		return fmt.Errorf("LEDGER_REST_API_URL is required")
	}

	if c.LedgerJSONRPCURL == "" {
		return fmt.Errorf("LEDGER_JSON_RPC_URL is required")
	}

	if c.CommunityOracleURL == "" {
		return fmt.Errorf("COMMUNITY_ORACLE_URL is required")
	}

	if c.SubscriptionPrice <= 0 {
		return fmt.Errorf("SUBSCRIPTION_PRICE must be positive, got %d", c.SubscriptionPrice)
	}

	if c.HistoryPageLimit <= 0 {
		return fmt.Errorf("HISTORY_PAGE_LIMIT must be positive, got %d", c.HistoryPageLimit)
	}

	if !c.Development {
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	}

	return nil
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

func getEnvAsInt64(name string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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
