package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"jiraharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage jiraharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (JIRAHARVEST_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as '.jiraharvest.yaml'
unless a different path is given with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.
The API token is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration and check value ranges, URLs, and that the
output and state directories can be created.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# jiraharvest configuration
#
# Every option can also be set with an environment variable prefixed with
# JIRAHARVEST_, for example JIRAHARVEST_SOURCES=KAFKA,SPARK.

jira:
  # Tracker root; the REST API lives below it
  base_url: "https://issues.apache.org/jira"
  user_agent: "jiraharvest/1.0 (+corpus builder)"
  timeout: 15s
  # Leave both empty for anonymous access, or use 'jiraharvest auth login'
  email: ""
  api_token: ""

harvest:
  # Project keys harvested when none are given on the command line
  sources: [KAFKA, SPARK, HADOOP]
  # Issues per request, 1-1000
  page_size: 50
  # Projects harvested at once
  concurrency: 1

retry:
  max_attempts: 7
  base_delay: 2s
  max_delay: 60s
  multiplier: 2.0
  jitter_factor: 0.1

rate_limit:
  # 0 disables client-side limiting
  requests_per_minute: 120

output:
  directory: "./corpus"
  state_directory: "./corpus/state"
  write_rejects: true
  write_report: true

logging:
  # debug, info, warn, error
  level: "info"
  # console or json
  format: "console"
  # Optional log file in addition to stderr
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".jiraharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit harvest.sources to list the projects you want")
	fmt.Println("2. Run 'jiraharvest config validate' to check the configuration")
	fmt.Println("3. Start with 'jiraharvest harvest'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			ui.PrintError("Configuration has errors")
			for _, e := range joined.Unwrap() {
				fmt.Printf("  - %s\n", e)
			}
			os.Exit(1)
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var problems []string
	for _, dir := range []string{cfg.Output.Directory, cfg.Output.StateDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create %s: %v", dir, err))
		}
	}
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(cfg.Harvest.Sources) == 0 {
		ui.PrintWarning("No projects configured; they must be given to 'harvest' as arguments")
	}
	if cfg.Jira.Email == "" {
		ui.PrintWarning("No credentials configured; harvesting anonymously")
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Jira: %s\n", cfg.Jira.BaseURL)
	fmt.Printf("  Projects: %v\n", cfg.Harvest.Sources)
	fmt.Printf("  Page size: %d\n", cfg.Harvest.PageSize)
	fmt.Printf("  Concurrency: %d\n", cfg.Harvest.Concurrency)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	fmt.Printf("  State directory: %s\n", cfg.Output.StateDirectory)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
