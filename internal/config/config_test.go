package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNilUserReturnsDefaults(t *testing.T) {
	opts := New(nil)
	require.Equal(t, "localhost:6379", opts.Store.Addr)
	require.Equal(t, 20, opts.Store.PoolSize)
	require.Equal(t, 10, opts.Pool.Capacity)
	require.Equal(t, "info", opts.Log.Level)
	require.Equal(t, 100, opts.Log.MaxSizeMB)
}

func TestNewAppliesOnlySetFields(t *testing.T) {
	user := &AppConfig{
		Store: &StoreOptions{Addr: "redis.internal:6379"},
		Pool:  &PoolOptions{Capacity: 50},
	}
	opts := New(user)

	require.Equal(t, "redis.internal:6379", opts.Store.Addr)
	// untouched fields keep their defaults
	require.Equal(t, 20, opts.Store.PoolSize)
	require.Equal(t, 5, opts.Store.MinIdleConns)

	require.Equal(t, 50, opts.Pool.Capacity)
	require.Equal(t, 5, opts.Pool.CallTimeoutSeconds)

	require.Equal(t, "info", opts.Log.Level, "Log wasn't set by the user at all")
}

func TestCallTimeoutConversion(t *testing.T) {
	opts := New(&AppConfig{Pool: &PoolOptions{CallTimeoutSeconds: 7}})
	require.Equal(t, 7e9, float64(opts.CallTimeout()))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, New(nil), opts)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	opts, err := Load("")
	require.NoError(t, err)
	require.Equal(t, New(nil), opts)
}

func TestLoadParsesAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewd.json")
	body := `{
		"store": {"addr": "10.0.0.5:6379", "pool_size": 64},
		"pool": {"capacity": 8, "call_timeout_seconds": 2},
		"log": {"level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5:6379", opts.Store.Addr)
	require.Equal(t, 64, opts.Store.PoolSize)
	require.Equal(t, 8, opts.Pool.Capacity)
	require.Equal(t, 2, opts.Pool.CallTimeoutSeconds)
	require.Equal(t, "debug", opts.Log.Level)
	// Log.FilePath wasn't set; still empty default
	require.Equal(t, "", opts.Log.FilePath)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
