package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://clearnet-sandbox.yellow.com/ws", cfg.ClearnodeURL)
	assert.True(t, cfg.Simulated)
	assert.Equal(t, "flowdesk", cfg.Application)
	assert.Equal(t, uint64(42161), cfg.ChainID)
	assert.Equal(t, "usdc", cfg.SettlementAsset)
	assert.Equal(t, 10*time.Second, cfg.PriceInterval)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Debug)
}

func TestLoadFromFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "flowdesk.yaml"), []byte(`
clearnode_url: wss://example.test/ws
simulated: false
chain_id: 10
request_timeout: 5s
`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://example.test/ws", cfg.ClearnodeURL)
	assert.False(t, cfg.Simulated)
	assert.Equal(t, uint64(10), cfg.ChainID)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, "usdc", cfg.SettlementAsset)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "flowdesk.yaml"), []byte(`
application: from-file
`), 0o600))
	t.Setenv("FLOWDESK_APPLICATION", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Application)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "flowdesk.yaml"), []byte("{not yaml"), 0o600))

	_, err := Load()
	require.Error(t, err)
}
