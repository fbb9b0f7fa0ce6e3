package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config aggregates application configuration values.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Explain  ExplainConfig

	// Admins are granted the ADMIN role on startup.
	Admins []common.Address
	// VaultAddress holds deposited collateral in the token ledger.
	VaultAddress common.Address
	// ScorerAddress is the identity the refresher job recomputes scores as.
	ScorerAddress common.Address

	PolicyFile      string
	RefreshInterval time.Duration
	OracleCacheTTL  time.Duration
}

// ServerConfig governs HTTP server behaviour.
type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the gorm dialect. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver   string
	DSN      string
	Host     string
	User     string
	Password string
	Name     string
	Port     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string // text|json
}

// ExplainConfig points at the optional explanation service. An empty URL
// disables it.
type ExplainConfig struct {
	URL     string
	Timeout time.Duration
}

const (
	defaultPort            = "8080"
	defaultShutdownTimeout = 30 * time.Second
	defaultExplainTimeout  = 3 * time.Second
	defaultOracleCacheTTL  = 30 * time.Second
	// Well-known placeholder for the collateral vault account.
	defaultVaultAddress = "0x000000000000000000000000000000000000c011"
)

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            valueOrDefault("PORT", defaultPort),
			AllowedOrigins:  parseList(os.Getenv("ALLOWED_ORIGINS")),
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			Driver:   valueOrDefault("DB_DRIVER", "postgres"),
			DSN:      os.Getenv("DB_DSN"),
			Host:     valueOrDefault("DB_HOST", "localhost"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     valueOrDefault("DB_NAME", "credit_scoring"),
			Port:     valueOrDefault("DB_PORT", "5432"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseIntWithDefault("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  valueOrDefault("LOG_LEVEL", "info"),
			Format: valueOrDefault("LOG_FORMAT", "json"),
		},
		Explain: ExplainConfig{
			URL:     os.Getenv("EXPLAIN_URL"),
			Timeout: defaultExplainTimeout,
		},
		PolicyFile:     os.Getenv("SCORING_POLICY_FILE"),
		OracleCacheTTL: defaultOracleCacheTTL,
	}

	var err error
	if cfg.Server.ShutdownTimeout, err = parseDuration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.Explain.Timeout, err = parseDuration("EXPLAIN_TIMEOUT", defaultExplainTimeout); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = parseDuration("REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.OracleCacheTTL, err = parseDuration("ORACLE_CACHE_TTL", defaultOracleCacheTTL); err != nil {
		return nil, err
	}

	if cfg.Admins, err = parseAddresses("ADMIN_ADDRESSES"); err != nil {
		return nil, err
	}
	if cfg.VaultAddress, err = parseAddress("VAULT_ADDRESS", defaultVaultAddress); err != nil {
		return nil, err
	}
	if cfg.ScorerAddress, err = parseAddress("SCORER_ADDRESS", ""); err != nil {
		return nil, err
	}

	return cfg, nil
}

// PostgresDSN builds a DSN from the discrete DB_* settings unless DB_DSN is set.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAddress(key, fallback string) (common.Address, error) {
	v := valueOrDefault(key, fallback)
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid %s value %q", key, v)
	}
	return common.HexToAddress(v), nil
}

func parseAddresses(key string) ([]common.Address, error) {
	var out []common.Address
	for _, v := range parseList(os.Getenv(key)) {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("invalid address %q in %s", v, key)
		}
		out = append(out, common.HexToAddress(v))
	}
	return out, nil
}
