package server

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/imagesprite/internal/ingest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imagesprite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "cifar10_train.db", cfg.Store.Path)
	assert.Equal(t, int64(ingest.DefaultMaxSize), cfg.Store.MaxSize)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ingest.DefaultBatches, cfg.Ingest.Batches)
	assert.Equal(t, "cifar", cfg.Ingest.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Run("relative paths and defaults", func(t *testing.T) {
		path := writeConfig(t, `
store:
  path: data/train.db
metadata:
  path: /var/lib/logs.db
http:
  addr: 127.0.0.1:9000
  rate_limit: 5.5
ingest:
  batches: [a.bin, b.bin.gz]
  format: raw
log:
  level: debug
  format: json
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		dir := filepath.Dir(path)
		assert.Equal(t, filepath.Join(dir, "data/train.db"), cfg.Store.Path)
		assert.Equal(t, "/var/lib/logs.db", cfg.Metadata.Path)
		assert.Equal(t, filepath.Join(dir, "cifar-10-batches-bin"), cfg.Ingest.Dir)
		assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
		assert.Equal(t, 5, cfg.HTTP.Burst)
		assert.Equal(t, []string{"a.bin", "b.bin.gz"}, cfg.Ingest.Batches)
		assert.Equal(t, "raw", cfg.Ingest.Format)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	invalid := map[string]string{
		"negative size":    "store:\n  max_size: -1\n",
		"negative rate":    "http:\n  rate_limit: -2\n",
		"unknown format":   "ingest:\n  format: jpeg\n",
		"unknown level":    "log:\n  level: loud\n",
		"unknown log kind": "log:\n  format: xml\n",
		"broken yaml":      "store: [\n",
	}
	for name, content := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(ConfigLog{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)

	_, err = NewLogger(ConfigLog{Level: "verbose"}, &buf)
	assert.Error(t, err)
}
