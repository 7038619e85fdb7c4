package ui

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"jiraharvest/pkg/checkpoint"
	"jiraharvest/pkg/report"
)

// WriteRunSummary renders the per-source counters of a run as a table
func WriteRunSummary(w io.Writer, run *report.RunReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tOUTCOME\tCURSOR\tPAGES\tFETCHED\tWRITTEN\tDUPLICATES\tREJECTED\tTIME")
	for _, s := range run.Sources {
		fmt.Fprintf(tw, "%s\t%s\t%d→%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Source,
			outcome(s.Outcome),
			s.StartCursor, s.EndCursor,
			humanize.Comma(int64(s.Pages)),
			humanize.Comma(int64(s.Fetched)),
			humanize.Comma(int64(s.Written)),
			humanize.Comma(int64(s.Duplicates)),
			humanize.Comma(int64(s.Rejected)),
			s.Duration().Round(time.Millisecond),
		)
	}
	t := run.Totals()
	fmt.Fprintf(tw, "%s\t\t\t%s\t%s\t%s\t%s\t%s\t%s\n",
		t.Source,
		humanize.Comma(int64(t.Pages)),
		humanize.Comma(int64(t.Fetched)),
		humanize.Comma(int64(t.Written)),
		humanize.Comma(int64(t.Duplicates)),
		humanize.Comma(int64(t.Rejected)),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
	)
	tw.Flush()

	for _, s := range run.Sources {
		if s.Error != "" {
			fmt.Fprintf(w, "%s %s: %s\n", Red("error"), s.Source, s.Error)
		}
	}
}

// PrintRunSummary writes the run summary to the ui output
func PrintRunSummary(run *report.RunReport) {
	mu.Lock()
	w := out
	mu.Unlock()
	fmt.Fprintln(w)
	WriteRunSummary(w, run)
}

// SourceStatus is one row of the status table
type SourceStatus struct {
	Checkpoint  checkpoint.Checkpoint
	Records     int
	CorpusBytes int64
}

// WriteStatus renders stored checkpoints and corpus sizes
func WriteStatus(w io.Writer, rows []SourceStatus, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No checkpoints found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tCURSOR\tRECORDS\tSIZE\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Checkpoint.SourceID,
			humanize.Comma(int64(r.Checkpoint.Cursor)),
			humanize.Comma(int64(r.Records)),
			humanize.Bytes(uint64(r.CorpusBytes)),
			humanize.RelTime(r.Checkpoint.UpdatedAt, now, "ago", "from now"),
		)
	}
	tw.Flush()
}

func outcome(o report.Outcome) string {
	switch o {
	case report.OutcomeCompleted:
		return Green(string(o))
	case report.OutcomeFailed:
		return Red(string(o))
	default:
		return Yellow(string(o))
	}
}
