package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://issues.apache.org/jira", cfg.Jira.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, 50, cfg.Harvest.PageSize)
	assert.Equal(t, 1, cfg.Harvest.Concurrency)

	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 0.1, cfg.Retry.JitterFactor)

	assert.Equal(t, "./corpus", cfg.Output.Directory)
	assert.True(t, cfg.Output.WriteRejects)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	// Defaults are valid on their own; sources may come later from args
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"BASE_URL", "https://jira.example.com")
	t.Setenv(EnvPrefix+"EMAIL", "bot@example.com")
	t.Setenv(EnvPrefix+"API_TOKEN", "secret")
	t.Setenv(EnvPrefix+"SOURCES", "kafka, spark hadoop")
	t.Setenv(EnvPrefix+"PAGE_SIZE", "100")
	t.Setenv(EnvPrefix+"CONCURRENCY", "3")
	t.Setenv(EnvPrefix+"MAX_ATTEMPTS", "4")
	t.Setenv(EnvPrefix+"OUTPUT_DIR", "/tmp/corpus")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://jira.example.com", cfg.Jira.BaseURL)
	assert.Equal(t, "bot@example.com", cfg.Jira.Email)
	assert.Equal(t, "secret", cfg.Jira.APIToken)
	assert.Equal(t, []string{"KAFKA", "SPARK", "HADOOP"}, cfg.Harvest.Sources)
	assert.Equal(t, 100, cfg.Harvest.PageSize)
	assert.Equal(t, 3, cfg.Harvest.Concurrency)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, "/tmp/corpus", cfg.Output.Directory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv(EnvPrefix+"PAGE_SIZE", "fifty")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
	assert.Equal(t, 50, cfg.Harvest.PageSize)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
jira:
  base_url: https://jira.example.com
  timeout: 30s
harvest:
  sources: [KAFKA, SPARK]
  page_size: 25
  concurrency: 2
retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 10s
  multiplier: 1.5
  jitter_factor: 0.2
output:
  directory: /data/corpus
  state_directory: /data/state
  write_rejects: false
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, "https://jira.example.com", cfg.Jira.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Jira.Timeout)
		assert.Equal(t, []string{"KAFKA", "SPARK"}, cfg.Harvest.Sources)
		assert.Equal(t, 25, cfg.Harvest.PageSize)
		assert.Equal(t, 2, cfg.Harvest.Concurrency)
		assert.Equal(t, 3, cfg.Retry.MaxAttempts)
		assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
		assert.Equal(t, 1.5, cfg.Retry.Multiplier)
		assert.Equal(t, "/data/state", cfg.Output.StateDirectory)
		assert.False(t, cfg.Output.WriteRejects)
		assert.True(t, cfg.Output.WriteReport)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("harvest:\n  sources: [this is invalid\n"), 0644))

		err := DefaultConfig().LoadFromFile(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("non-existent file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile("/non/existent/path/config.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestFindConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	oldDir, _ := os.Getwd()
	defer os.Chdir(oldDir)
	require.NoError(t, os.Chdir(tempDir))
	t.Setenv("HOME", tempDir)

	cfg := DefaultConfig()
	assert.Empty(t, cfg.findConfigFile())

	require.NoError(t, os.WriteFile(".jiraharvest.yaml", []byte("logging:\n  level: debug\n"), 0644))
	assert.Equal(t, ".jiraharvest.yaml", cfg.findConfigFile())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func(*Config)
		expectError   bool
		errorContains []string
	}{
		{
			name:        "valid config",
			setupConfig: func(cfg *Config) { cfg.Harvest.Sources = []string{"KAFKA"} },
		},
		{
			name: "relative base URL",
			setupConfig: func(cfg *Config) {
				cfg.Jira.BaseURL = "issues.apache.org"
			},
			expectError:   true,
			errorContains: []string{"not an absolute URL"},
		},
		{
			name: "half configured credentials",
			setupConfig: func(cfg *Config) {
				cfg.Jira.Email = "bot@example.com"
			},
			expectError:   true,
			errorContains: []string{"email and API token must be set together"},
		},
		{
			name: "bad paging",
			setupConfig: func(cfg *Config) {
				cfg.Harvest.PageSize = 0
				cfg.Harvest.Concurrency = 0
			},
			expectError: true,
			errorContains: []string{
				"page size must be between 1 and 1000",
				"concurrency must be positive",
			},
		},
		{
			name: "duplicate and empty sources",
			setupConfig: func(cfg *Config) {
				cfg.Harvest.Sources = []string{"KAFKA", "", "KAFKA"}
			},
			expectError: true,
			errorContains: []string{
				"source identifiers cannot be empty",
				`source "KAFKA" listed more than once`,
			},
		},
		{
			name: "bad retry policy",
			setupConfig: func(cfg *Config) {
				cfg.Retry.MaxAttempts = 0
				cfg.Retry.MaxDelay = time.Millisecond
				cfg.Retry.Multiplier = 0.5
				cfg.Retry.JitterFactor = 2
			},
			expectError: true,
			errorContains: []string{
				"retry max attempts must be positive",
				"base_delay <= max_delay",
				"multiplier must be at least 1",
				"jitter factor must be between 0 and 1",
			},
		},
		{
			name:          "invalid log format",
			setupConfig:   func(cfg *Config) { cfg.Logging.Format = "xml" },
			expectError:   true,
			errorContains: []string{`invalid log format "xml"`},
		},
		{
			name:          "invalid log level",
			setupConfig:   func(cfg *Config) { cfg.Logging.Level = "loud" },
			expectError:   true,
			errorContains: []string{"invalid log level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setupConfig(cfg)

			err := cfg.Validate()
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, contains := range tt.errorContains {
				assert.Contains(t, err.Error(), contains)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"sources":     []string{"HIVE"},
		"page-size":   10,
		"concurrency": 4,
		"output":      "/flag/output",
		"log-level":   "error",
	})

	assert.Equal(t, []string{"HIVE"}, cfg.Harvest.Sources)
	assert.Equal(t, 10, cfg.Harvest.PageSize)
	assert.Equal(t, 4, cfg.Harvest.Concurrency)
	assert.Equal(t, "/flag/output", cfg.Output.Directory)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestSaveAndRedact(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Jira.Email = "bot@example.com"
	cfg.Jira.APIToken = "secret"
	cfg.Harvest.Sources = []string{"KAFKA"}
	require.NoError(t, cfg.Save(configPath))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))
	assert.Equal(t, cfg.Harvest.Sources, loaded.Harvest.Sources)
	assert.Equal(t, "secret", loaded.Jira.APIToken)

	red := cfg.Redacted()
	assert.Equal(t, "********", red.Jira.APIToken)
	assert.Equal(t, "secret", cfg.Jira.APIToken)
}

func TestSplitSources(t *testing.T) {
	assert.Equal(t, []string{"KAFKA", "SPARK"}, SplitSources("kafka,,spark"))
	assert.Empty(t, SplitSources(" , "))
}
