package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadConfigDefaults tests that the default values are applied correctly when loading a config.
func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  dsn: postgres://localhost/events\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/webhook/receiver", cfg.Receiver.WebhookPath)
	assert.Equal(t, "/webhook/events", cfg.Receiver.EventsPath)
	assert.Equal(t, "/webhook/", cfg.Receiver.HomePath)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "events", cfg.Storage.Table)
	assert.Equal(t, "gochannel", cfg.Watermill.Driver)
	assert.Empty(t, cfg.Watermill.Drivers)
	assert.EqualValues(t, 64, cfg.Watermill.GoChannel.OutputChannelBuffer)
	assert.Equal(t, "topic_url", cfg.Watermill.HTTP.Mode)
	assert.EqualValues(t, 1<<20, cfg.Server.MaxBodyBytes)
}

// TestLoadConfigMissingDSN tests that a missing storage DSN fails startup.
func TestLoadConfigMissingDSN(t *testing.T) {
	t.Setenv("STORAGE_DSN", "")
	path := writeConfig(t, "{}\n")

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrMissingStorageDSN)
}

// TestLoadConfigEnvOverride tests that STORAGE_DSN and STORAGE_DRIVER fill unset values.
func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STORAGE_DSN", "file:events.db")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	path := writeConfig(t, "{}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file:events.db", cfg.Storage.DSN)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

// TestLoadConfigExpandsEnv tests that ${VAR} references are expanded.
func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("EVENTS_URL", "http://opensearch:9200")
	path := writeConfig(t, "storage:\n  driver: opensearch\n  dsn: ${EVENTS_URL}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://opensearch:9200", cfg.Storage.DSN)
	assert.Equal(t, "events", cfg.Storage.OpenSearch.Index)
}

// TestLoadConfigUnsupportedDriver tests that unknown storage drivers are rejected.
func TestLoadConfigUnsupportedDriver(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: mongodb\n  dsn: mongodb://localhost\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
}

// TestLoadConfigInvalidRule tests that loading a config with an invalid rule returns an error.
func TestLoadConfigInvalidRule(t *testing.T) {
	path := writeConfig(t, "storage:\n  dsn: x\nrules:\n  - when: event_type == \"MERGE\"\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
}

// TestLoadConfigTrimsFields tests that the fields in a rule are trimmed correctly.
func TestLoadConfigTrimsFields(t *testing.T) {
	content := "storage:\n  dsn: x\nrules:\n  - when: \"  event_type == \\\"MERGE\\\"  \"\n    emit: \"  events.merged  \"\n    drivers: [\" kafka \", \"\"]\n"
	path := writeConfig(t, content)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "event_type == \"MERGE\"", cfg.Rules[0].When)
	assert.Equal(t, EmitList{"events.merged"}, cfg.Rules[0].Emit)
	assert.Equal(t, []string{"kafka"}, cfg.Rules[0].Drivers)
}

// TestLoadConfigEmitList tests that emit accepts a list of topics.
func TestLoadConfigEmitList(t *testing.T) {
	content := "storage:\n  dsn: x\nrules:\n  - when: \"true\"\n    emit: [a, b]\n"
	path := writeConfig(t, content)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, EmitList{"a", "b"}, cfg.Rules[0].Emit)
}
