package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"CONFIG_FILE", "LISTEN_ADDR", "STORE_MODE", "DATA_DIR", "BALANCE_FILE", "WAREHOUSE_FILE",
	"HISTORY_FILE", "SQLITE_PATH", "DATABASE_URL", "INITIAL_BALANCE", "CURRENCY", "LOG_LEVEL",
	"ADMIN_USERNAME", "ADMIN_PASSWORD", "JWT_SECRET", "ADMIN_TOKEN_TTL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreFlatFile, cfg.StoreMode)
	assert.Equal(t, "company_balance.txt", cfg.BalancePath())
	assert.Equal(t, "1000000", cfg.StartingBalance().String())
	assert.Equal(t, "PLN", cfg.Currency)
	assert.False(t, cfg.AuthEnabled())
	assert.Equal(t, 12*time.Hour, cfg.AdminTokenTTL)
}

func TestLoad_YAMLThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "stockledger.yaml")
	yamlDoc := "store_mode: sqlite\ndata_dir: " + dir + "\ncurrency: EUR\ninitial_balance: \"2500.50\"\nadmin_token_ttl: 1h\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CURRENCY", "USD")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.StoreMode)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "2500.5", cfg.StartingBalance().String())
	assert.Equal(t, filepath.Join(dir, "site.db"), cfg.SQLiteFile())
	assert.Equal(t, time.Hour, cfg.AdminTokenTTL)
	assert.True(t, cfg.AuthEnabled())
}

func TestLoad_BrokenYAMLStillReturnsEnvConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_mode: [unclosed\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORE_MODE", "MEMORY")

	cfg, err := Load()
	require.Error(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreMode)
}

func TestStartingBalance_FallsBackOnGarbage(t *testing.T) {
	cfg := Config{InitialBalance: "lots"}
	assert.Equal(t, "1000000", cfg.StartingBalance().String())

	cfg.InitialBalance = "-5"
	assert.Equal(t, "1000000", cfg.StartingBalance().String())
}

func TestResolve_KeepsAbsolutePaths(t *testing.T) {
	cfg := Config{DataDir: "/data", HistoryFile: "/tmp/history.txt", WarehouseFile: "warehouse.txt"}
	assert.Equal(t, "/tmp/history.txt", cfg.HistoryPath())
	assert.Equal(t, filepath.Join("/data", "warehouse.txt"), cfg.WarehousePath())
}
