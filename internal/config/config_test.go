package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	assert.Equal(t, 2, cfg.Retriever.Margin)
	assert.Equal(t, 1500, cfg.Chunk.Size)
	assert.Equal(t, 200, cfg.Chunk.Overlap)
	assert.Equal(t, 3, cfg.Evaluation.MaxRetries)
	assert.Equal(t, 5, cfg.Wait.IntervalSecs)
	assert.Equal(t, 60, cfg.Wait.MaxAttempts)
	assert.Equal(t, "local", cfg.Extract.Provider)
	assert.Equal(t, "pdftotext", cfg.Extract.PdfToTextPath)
	assert.Equal(t, "https://api.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "jina-embeddings-v3", cfg.Jina.Model)
	assert.Equal(t, "sqlite", cfg.VecIndex.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "compliance-pipeline", cfg.Kafka.GroupID)
	assert.Equal(t, "notifications", cfg.Redis.Channel)
	assert.Equal(t, "local", cfg.Storage.Backend)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
retriever:
  top_k: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Retriever.TopK)
	// Defaults still apply for unset values
	assert.Equal(t, 2, cfg.Retriever.Margin)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("COMPLIANCE_STORE_DRIVER", "postgres")
	t.Setenv("COMPLIANCE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("COMPLIANCE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Retriever.TopK = 3
	cfg.Retriever.Margin = 2
	cfg.Chunk.Size = 1500
	cfg.Chunk.Overlap = 200
	cfg.Evaluation.MaxRetries = 3
	cfg.Wait.IntervalSecs = 5
	cfg.Wait.MaxAttempts = 60
	cfg.Server.Port = 8080
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Redis.URL = "redis://localhost:6379/0"
	return cfg
}

func TestValidateServe_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Jina.Key = "jina-key"

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()
	// All pipeline-required fields are empty

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "jina.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Anthropic.Key = "k"
	cfg.Jina.Key = "k"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateMigrate_OnlyNeedsDB(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"

	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateCriteria_NeedsNotionToken(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"

	err := cfg.Validate("criteria")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")

	cfg.Notion.Token = "ntn_token"
	assert.NoError(t, cfg.Validate("criteria"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateRetrieverBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Anthropic.Key = "k"
	cfg.Jina.Key = "k"

	cfg.Retriever.TopK = 0
	err := cfg.Validate("evaluate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retriever.top_k must be >= 1")

	cfg.Retriever.TopK = 3
	cfg.Retriever.Margin = -1
	err = cfg.Validate("evaluate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retriever.margin must be >= 0")

	cfg.Retriever.Margin = 2
	assert.NoError(t, cfg.Validate("evaluate"))
}

func TestValidateChunkBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Anthropic.Key = "k"
	cfg.Jina.Key = "k"

	cfg.Chunk.Overlap = 1500
	err := cfg.Validate("evaluate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chunk.overlap")

	cfg.Chunk.Overlap = 200
	cfg.Wait.MaxAttempts = 0
	err = cfg.Validate("evaluate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "wait.max_attempts must be >= 1")
}
