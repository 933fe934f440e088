package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StoreFlatFile = "flatfile"
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	ListenAddr     string        `yaml:"listen_addr"`
	StoreMode      string        `yaml:"store_mode"`
	DataDir        string        `yaml:"data_dir"`
	BalanceFile    string        `yaml:"balance_file"`
	WarehouseFile  string        `yaml:"warehouse_file"`
	HistoryFile    string        `yaml:"history_file"`
	SQLitePath     string        `yaml:"sqlite_path"`
	DatabaseURL    string        `yaml:"database_url"`
	InitialBalance string        `yaml:"initial_balance"`
	Currency       string        `yaml:"currency"`
	LogLevel       string        `yaml:"log_level"`
	AdminUsername  string        `yaml:"admin_username"`
	AdminPassword  string        `yaml:"admin_password"`
	JWTSecret      string        `yaml:"jwt_secret"`
	AdminTokenTTL  time.Duration `yaml:"admin_token_ttl"`
}

func defaults() Config {
	return Config{
		ListenAddr:     ":8080",
		StoreMode:      StoreFlatFile,
		DataDir:        ".",
		BalanceFile:    "company_balance.txt",
		WarehouseFile:  "warehouse.txt",
		HistoryFile:    "history.txt",
		SQLitePath:     "site.db",
		InitialBalance: "1000000",
		Currency:       "PLN",
		LogLevel:       "info",
		AdminUsername:  "admin",
		AdminTokenTTL:  12 * time.Hour,
	}
}

// Load builds the configuration from defaults, then the optional CONFIG_FILE
// (YAML), then environment variables. A broken CONFIG_FILE is returned as an
// error alongside the env-only configuration.
func Load() (Config, error) {
	cfg := defaults()
	var fileErr error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fileErr = applyYAML(path, &cfg)
	}
	applyEnv(&cfg)
	return cfg, fileErr
}

func applyYAML(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.StoreMode = strings.ToLower(getEnv("STORE_MODE", cfg.StoreMode))
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.BalanceFile = getEnv("BALANCE_FILE", cfg.BalanceFile)
	cfg.WarehouseFile = getEnv("WAREHOUSE_FILE", cfg.WarehouseFile)
	cfg.HistoryFile = getEnv("HISTORY_FILE", cfg.HistoryFile)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.InitialBalance = getEnv("INITIAL_BALANCE", cfg.InitialBalance)
	cfg.Currency = getEnv("CURRENCY", cfg.Currency)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.AdminUsername = getEnv("ADMIN_USERNAME", cfg.AdminUsername)
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AdminTokenTTL = getDuration("ADMIN_TOKEN_TTL", cfg.AdminTokenTTL)
}

// StartingBalance parses InitialBalance, falling back to one million on bad input.
func (c Config) StartingBalance() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.InitialBalance))
	if err != nil || d.IsNegative() {
		return decimal.NewFromInt(1_000_000)
	}
	return d
}

// AuthEnabled reports whether mutating HTTP routes require an admin token.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func (c Config) BalancePath() string   { return c.resolve(c.BalanceFile) }
func (c Config) WarehousePath() string { return c.resolve(c.WarehouseFile) }
func (c Config) HistoryPath() string   { return c.resolve(c.HistoryFile) }
func (c Config) SQLiteFile() string    { return c.resolve(c.SQLitePath) }

func (c Config) resolve(name string) string {
	if filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
