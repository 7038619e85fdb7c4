package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"jiraharvest/pkg/checkpoint"
	"jiraharvest/pkg/config"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/report"
	"jiraharvest/pkg/storage"
	"jiraharvest/pkg/ui"
)

var resetYes bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoints and the last run",
	Long: `Show the stored checkpoint of every project together with the number of
records in its corpus file, followed by the summary of the most recent run
report.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset PROJECT...",
	Short: "Delete project checkpoints",
	Long: `Delete the checkpoint of each given project so the next harvest starts
from the first issue. Corpus files are left alone; records already written
are skipped by issue key when they come around again.`,
	Example: `  jiraharvest reset KAFKA
  jiraharvest reset KAFKA SPARK --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
}

func openStores(cfg *config.Config) (*checkpoint.FileStore, *storage.Manager, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	checkpoints, err := checkpoint.NewFileStore(cfg.Output.StateDirectory, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint directory: %w", err)
	}
	sink, err := storage.NewManager(cfg.Output.Directory, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open corpus directory: %w", err)
	}
	return checkpoints, sink, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	checkpoints, sink, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx := cmd.Context()
	cps, err := checkpoints.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	rows := make([]ui.SourceStatus, 0, len(cps))
	for _, cp := range cps {
		row := ui.SourceStatus{Checkpoint: cp}
		if n, err := sink.Count(cp.SourceID); err == nil {
			row.Records = n
		}
		if fi, err := os.Stat(sink.CorpusPath(cp.SourceID)); err == nil {
			row.CorpusBytes = fi.Size()
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Checkpoints")
	ui.WriteStatus(out, rows, time.Now())

	last, err := report.Latest(cfg.Output.Directory)
	if err != nil || last == nil {
		return nil
	}
	fmt.Fprintln(out)
	ui.PrintHighlight("Last run " + last.RunID)
	ui.WriteRunSummary(out, last)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	checkpoints, sink, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	var sources []string
	for _, a := range args {
		sources = append(sources, config.SplitSources(a)...)
	}

	if !resetYes {
		fmt.Printf("Reset checkpoints for %s? (y/N): ", strings.Join(sources, ", "))
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	ctx := cmd.Context()
	for _, source := range sources {
		if err := checkpoints.Reset(ctx, source); err != nil {
			return fmt.Errorf("failed to reset %s: %w", source, err)
		}
		ui.PrintSuccess("Checkpoint reset: " + source)
	}
	return nil
}
