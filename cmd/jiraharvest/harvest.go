package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"jiraharvest/pkg/auth"
	"jiraharvest/pkg/checkpoint"
	"jiraharvest/pkg/config"
	"jiraharvest/pkg/fetcher"
	"jiraharvest/pkg/harvester"
	"jiraharvest/pkg/jira"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/ratelimit"
	"jiraharvest/pkg/report"
	"jiraharvest/pkg/retry"
	"jiraharvest/pkg/storage"
	"jiraharvest/pkg/ui"
)

var (
	// Harvest command flags
	outputDir   string
	stateDir    string
	baseURL     string
	pageSize    int
	concurrency int
	maxAttempts int
	rateLimit   int
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest [PROJECT...]",
	Short: "Harvest issues from one or more Jira projects",
	Long: `Harvest every issue of the given Jira projects into one JSONL file per
project.

Projects come from the arguments, or from harvest.sources in the
configuration file when no arguments are given. Each project resumes from
its checkpoint; delete it with 'jiraharvest reset' to start over.

Exit status is 0 when every project completed, 130 when the run was
interrupted, and 1 when any project failed.`,
	Example: `  # Harvest two Apache projects anonymously
  jiraharvest harvest KAFKA SPARK

  # Three projects at a time into a custom directory
  jiraharvest harvest KAFKA SPARK HADOOP --concurrency 3 --output ./data

  # Another Jira instance with stored credentials
  jiraharvest harvest OPS --base-url https://example.atlassian.net`,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVarP(&outputDir, "output", "o", "", "corpus output directory")
	harvestCmd.Flags().StringVar(&stateDir, "state-dir", "", "checkpoint directory")
	harvestCmd.Flags().StringVar(&baseURL, "base-url", "", "Jira base URL")
	harvestCmd.Flags().IntVar(&pageSize, "page-size", 0, "issues requested per page")
	harvestCmd.Flags().IntVar(&concurrency, "concurrency", 0, "projects harvested at once")
	harvestCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempts per request before giving up")
	harvestCmd.Flags().IntVar(&rateLimit, "rate-limit", -1, "requests per minute, 0 for unlimited")
}

func harvestFlags(args []string) map[string]interface{} {
	flags := make(map[string]interface{})
	if len(args) > 0 {
		var sources []string
		for _, a := range args {
			sources = append(sources, config.SplitSources(a)...)
		}
		flags["sources"] = sources
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if stateDir != "" {
		flags["state-dir"] = stateDir
	}
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if concurrency > 0 {
		flags["concurrency"] = concurrency
	}
	if maxAttempts > 0 {
		flags["max-attempts"] = maxAttempts
	}
	if rateLimit >= 0 {
		flags["requests-per-minute"] = rateLimit
	}
	return flags
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(harvestFlags(args))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(cfg.Harvest.Sources) == 0 {
		return errors.New("no projects given; pass them as arguments or set harvest.sources")
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	applyStoredCredentials(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, sink, err := buildHarvester(cfg, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	ui.PrintInfo("Jira", cfg.Jira.BaseURL)
	ui.PrintInfo("Output", cfg.Output.Directory)

	run := h.Run(ctx, cfg.Harvest.Sources)
	ui.PrintRunSummary(run)

	if cfg.Output.WriteReport {
		path, err := run.Save(cfg.Output.Directory)
		if err != nil {
			log.WithError(err).Error("Failed to save run report")
			ui.PrintWarning("Run report not saved", err)
		} else {
			ui.PrintInfo("Report", path)
		}
	}

	if notifications {
		ui.NewNotifier().NotifyRun(run)
	}

	code := run.ExitCode()
	switch code {
	case report.ExitOK:
		ui.PrintSuccess("Harvest complete")
	case report.ExitInterrupted:
		ui.PrintWarning("Harvest interrupted; rerun to resume")
	default:
		ui.PrintError("Harvest failed", run.Err())
	}

	// deferred closes must run before exiting
	sink.Close()
	stop()
	os.Exit(code)
	return nil
}

// applyStoredCredentials fills in credentials from the keychain or the
// encrypted store when none were configured
func applyStoredCredentials(cfg *config.Config, log logger.Logger) {
	if cfg.Jira.Email != "" {
		return
	}
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential manager unavailable")
		return
	}
	account, err := manager.RetrieveDefault()
	if err != nil {
		log.Debug("No stored credentials, harvesting anonymously")
		return
	}
	if account.Site != "" && account.Site != cfg.Jira.BaseURL {
		log.WithFields(map[string]interface{}{
			"account_site": account.Site,
			"base_url":     cfg.Jira.BaseURL,
		}).Debug("Stored credentials belong to another site")
		return
	}
	cfg.Jira.Email = account.Email
	cfg.Jira.APIToken = account.APIToken
	log.WithField("email", account.Email).Info("Using stored credentials")
}

func buildHarvester(cfg *config.Config, log logger.Logger) (*harvester.Harvester, *storage.Manager, error) {
	client := jira.NewClient(cfg.Jira, log)
	transport := jira.NewTransport(client, retry.FromConfig(cfg.Retry, log), log)
	pages := fetcher.New(transport, ratelimit.New(cfg.RateLimit.RequestsPerMinute), log)

	sink, err := storage.NewManager(cfg.Output.Directory, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open corpus directory: %w", err)
	}
	checkpoints, err := checkpoint.NewFileStore(cfg.Output.StateDirectory, log)
	if err != nil {
		sink.Close()
		return nil, nil, fmt.Errorf("failed to open checkpoint directory: %w", err)
	}

	opts := harvester.Options{
		PageSize:    cfg.Harvest.PageSize,
		Concurrency: cfg.Harvest.Concurrency,
		Logger:      log,
	}
	if !ui.IsQuietMode() {
		opts.Observer = ui.NewProgress().Observe
	}
	if cfg.Output.WriteRejects {
		rejects, err := storage.NewRejectLog(cfg.Output.Directory)
		if err != nil {
			sink.Close()
			return nil, nil, fmt.Errorf("failed to open reject log: %w", err)
		}
		opts.Rejects = rejects
	}

	h, err := harvester.New(pages, sink, checkpoints, opts)
	if err != nil {
		sink.Close()
		return nil, nil, err
	}
	return h, sink, nil
}
