package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShuqiCH3N/Elytro/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("config file values win over defaults", func(t *testing.T) {
		dir := testutil.TempDir(t)
		path := writeConfig(t, dir, `
data_dir: `+dir+`
listen_addr: "127.0.0.1:9000"
log_level: debug
mysql_dsn: "root:pw@tcp(localhost:3306)/elytro"
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, dir, cfg.DataDir)
		assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "root:pw@tcp(localhost:3306)/elytro", cfg.MySQLDSN)
	})

	t.Run("built-in chains when none configured", func(t *testing.T) {
		dir := testutil.TempDir(t)
		path := writeConfig(t, dir, "data_dir: "+dir+"\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		require.NotEmpty(t, cfg.Chains)
		assert.Equal(t, uint64(1), cfg.Chains[0].ID)
	})

	t.Run("chains parse from the config file", func(t *testing.T) {
		dir := testutil.TempDir(t)
		path := writeConfig(t, dir, `
data_dir: `+dir+`
chains:
  - chain_id: 31337
    display_name: Local
    rpc_urls: ["http://localhost:8545"]
    bundler_url: "http://localhost:4337"
    entry_point: "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Len(t, cfg.Chains, 1)
		assert.Equal(t, uint64(31337), cfg.Chains[0].ID)
		assert.Equal(t, "Local", cfg.Chains[0].DisplayName)
		assert.Equal(t, []string{"http://localhost:8545"}, cfg.Chains[0].RPCURLs)
	})

	t.Run("environment overrides", func(t *testing.T) {
		dir := testutil.TempDir(t)
		path := writeConfig(t, dir, "data_dir: "+dir+"\n")
		t.Setenv("ELYTRO_LISTEN_ADDR", "0.0.0.0:7027")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:7027", cfg.ListenAddr)
	})

	t.Run("data directory is created", func(t *testing.T) {
		dir := testutil.TempDir(t)
		nested := filepath.Join(dir, "nested", "data")
		path := writeConfig(t, dir, "data_dir: "+nested+"\n")

		_, err := Load(path)
		require.NoError(t, err)
		info, err := os.Stat(nested)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}
