package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the harvester reads
const EnvPrefix = "JIRAHARVEST_"

// Config holds all configuration options for the harvester
type Config struct {
	// Remote Jira instance
	Jira JiraConfig `yaml:"jira" json:"jira"`

	// Which sources to harvest and how
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Retry policy for transient failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Courtesy rate limiting between pages
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// JiraConfig holds remote API settings
type JiraConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Email     string        `yaml:"email" json:"email"`
	APIToken  string        `yaml:"api_token" json:"api_token"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// HarvestConfig holds the list of sources and paging settings
type HarvestConfig struct {
	Sources     []string `yaml:"sources" json:"sources"`
	PageSize    int      `yaml:"page_size" json:"page_size"`
	Concurrency int      `yaml:"concurrency" json:"concurrency"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory      string `yaml:"directory" json:"directory"`
	StateDirectory string `yaml:"state_directory" json:"state_directory"`
	WriteRejects   bool   `yaml:"write_rejects" json:"write_rejects"`
	WriteReport    bool   `yaml:"write_report" json:"write_report"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is "console" for humans or "json" for unattended runs
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Jira: JiraConfig{
			BaseURL:   "https://issues.apache.org/jira",
			UserAgent: "jiraharvest/1.0 (+corpus builder)",
			Timeout:   15 * time.Second,
		},
		Harvest: HarvestConfig{
			PageSize:    50,
			Concurrency: 1,
		},
		Retry: RetryConfig{
			MaxAttempts:  7,
			BaseDelay:    2 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Output: OutputConfig{
			Directory:      "./corpus",
			StateDirectory: "./corpus/state",
			WriteRejects:   true,
			WriteReport:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(EnvPrefix + "BASE_URL"); v != "" {
		c.Jira.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "USER_AGENT"); v != "" {
		c.Jira.UserAgent = v
	}
	if v := os.Getenv(EnvPrefix + "EMAIL"); v != "" {
		c.Jira.Email = v
	}
	if v := os.Getenv(EnvPrefix + "API_TOKEN"); v != "" {
		c.Jira.APIToken = v
	}
	if v := os.Getenv(EnvPrefix + "SOURCES"); v != "" {
		c.Harvest.Sources = SplitSources(v)
	}
	if v := os.Getenv(EnvPrefix + "PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err))
		} else {
			c.Harvest.PageSize = n
		}
	}
	if v := os.Getenv(EnvPrefix + "CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENCY: %w", EnvPrefix, err))
		} else {
			c.Harvest.Concurrency = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_ATTEMPTS: %w", EnvPrefix, err))
		} else {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvPrefix + "REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv(EnvPrefix + "STATE_DIR"); v != "" {
		c.Output.StateDirectory = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".jiraharvest.yaml",
		".jiraharvest.yml",
		filepath.Join(home, ".config", "jiraharvest", "config.yaml"),
		filepath.Join(home, ".config", "jiraharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Jira.BaseURL == "" {
		errs = append(errs, errors.New("jira base URL is required"))
	} else if u, err := url.Parse(c.Jira.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("jira base URL %q is not an absolute URL", c.Jira.BaseURL))
	}
	if c.Jira.Timeout <= 0 {
		errs = append(errs, errors.New("jira timeout must be positive"))
	}
	if (c.Jira.Email == "") != (c.Jira.APIToken == "") {
		errs = append(errs, errors.New("jira email and API token must be set together"))
	}

	if c.Harvest.PageSize <= 0 || c.Harvest.PageSize > 1000 {
		errs = append(errs, errors.New("page size must be between 1 and 1000"))
	}
	if c.Harvest.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	seen := make(map[string]bool, len(c.Harvest.Sources))
	for _, s := range c.Harvest.Sources {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, errors.New("source identifiers cannot be empty"))
			continue
		}
		if seen[s] {
			errs = append(errs, fmt.Errorf("source %q listed more than once", s))
		}
		seen[s] = true
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 <= base_delay <= max_delay"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.StateDirectory == "" {
		errs = append(errs, errors.New("state directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q, want console or json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	out := *c
	out.Harvest.Sources = append([]string(nil), c.Harvest.Sources...)
	if out.Jira.APIToken != "" {
		out.Jira.APIToken = "********"
	}
	return &out
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Jira.BaseURL = v
	}
	if v, ok := flags["sources"].([]string); ok && len(v) > 0 {
		c.Harvest.Sources = v
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.Harvest.PageSize = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Harvest.Concurrency = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v >= 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["state-dir"].(string); ok && v != "" {
		c.Output.StateDirectory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// SplitSources parses a comma or whitespace separated list of project keys
func SplitSources(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToUpper(strings.TrimSpace(f)))
	}
	return out
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".jiraharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
