package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arguard/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log_level: debug
detector:
  name: grfics
  alert_cooldown: 2s
  settings:
    mode: cluster
    itemset_size: 300
    num_process_value_clusters: 4
    widen_delay_bounds: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "grfics", cfg.Detector.Name)
	assert.Equal(t, 2*time.Second, cfg.Detector.AlertCooldown)
	assert.Equal(t, model.ModeCluster, cfg.Detector.Settings.Mode)
	assert.Equal(t, 300, cfg.Detector.Settings.ItemsetSize)
	assert.True(t, cfg.Detector.Settings.WidenDelayBounds)
	assert.Equal(t, 0.2, cfg.Detector.Settings.MinSupport)
	assert.Equal(t, model.OrderMined, cfg.Detector.Settings.RuleOrder)
	assert.Equal(t, 10000, cfg.Ingest.ChannelBuffer)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"detector": {"name": "json-ids", "settings": {"itemset_size": 5}}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json-ids", cfg.Detector.Name)
	assert.Equal(t, 5, cfg.Detector.Settings.ItemsetSize)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	path := writeFile(t, "config.yaml", "detector:\n  settings:\n    min_support: 1.5\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_support")
}

func TestValidateKafka(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingest.Kafka.Enabled = true
	assert.Error(t, Validate(cfg))
	cfg.Ingest.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Ingest.Kafka.Topic = "ipal"
	cfg.Ingest.Kafka.GroupID = "arguard"
	assert.NoError(t, Validate(cfg))
}

func TestEmptyConfig(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "   \n"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Detector.Name = "saved"
	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Detector.Name)
	assert.Equal(t, cfg.Detector.AlertCooldown, loaded.Detector.AlertCooldown)
	assert.Equal(t, cfg.Detector.Settings.MissingValue, loaded.Detector.Settings.MissingValue)
	assert.Equal(t, cfg.Storage, loaded.Storage)
}

func TestManagerReload(t *testing.T) {
	path := writeFile(t, "config.yaml", "detector:\n  name: first\n")
	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, "first", m.Get().Detector.Name)

	require.NoError(t, os.WriteFile(path, []byte("detector:\n  name: second\n"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	needs, err := m.NeedsReload()
	require.NoError(t, err)
	assert.True(t, needs)
	cfg, err := m.Reload()
	require.NoError(t, err)
	assert.Equal(t, "second", cfg.Detector.Name)
	assert.Equal(t, "second", m.Get().Detector.Name)
}
