// Package report collects per-source harvest counters and persists them as
// a JSON run report next to the corpus.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Outcome is the terminal state of one source within a run
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// Exit statuses of a run
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitInterrupted = 130
)

// SourceReport holds the counters of one source
type SourceReport struct {
	Source      string    `json:"source"`
	Outcome     Outcome   `json:"outcome"`
	StartCursor int       `json:"start_cursor"`
	EndCursor   int       `json:"end_cursor"`
	Pages       int       `json:"pages"`
	Fetched     int       `json:"fetched"`
	Validated   int       `json:"validated"`
	Rejected    int       `json:"rejected"`
	Written     int       `json:"written"`
	Duplicates  int       `json:"duplicates"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMS  int64     `json:"duration_ms"`

	// Err is the failure behind Error; not persisted
	Err error `json:"-"`
}

// Finish stamps the outcome and timing of the source
func (s *SourceReport) Finish(outcome Outcome, err error, now time.Time) {
	s.Outcome = outcome
	s.Err = err
	if err != nil {
		s.Error = err.Error()
	}
	s.FinishedAt = now
	s.DurationMS = now.Sub(s.StartedAt).Milliseconds()
}

// Duration returns the wall time spent on the source
func (s *SourceReport) Duration() time.Duration {
	return time.Duration(s.DurationMS) * time.Millisecond
}

// RunReport aggregates the sources of one run
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`

	mu sync.Mutex
}

// NewRun starts a report with a fresh run ID
func NewRun(now time.Time) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: now,
		Sources:   []SourceReport{},
	}
}

// Add records a finished source. Safe for concurrent use.
func (r *RunReport) Add(s SourceReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sources = append(r.Sources, s)
}

// Finish stamps the end of the run and orders sources by name
func (r *RunReport) Finish(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = now
	sort.SliceStable(r.Sources, func(i, j int) bool {
		return r.Sources[i].Source < r.Sources[j].Source
	})
}

// Source returns the report of the named source, if present
func (r *RunReport) Source(name string) (SourceReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Sources {
		if s.Source == name {
			return s, true
		}
	}
	return SourceReport{}, false
}

// Err aggregates the failures of every failed source, nil when none failed
func (r *RunReport) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *multierror.Error
	for _, s := range r.Sources {
		if s.Outcome != OutcomeFailed {
			continue
		}
		err := s.Err
		if err == nil {
			err = fmt.Errorf("%s", s.Error)
		}
		result = multierror.Append(result, fmt.Errorf("source %s: %w", s.Source, err))
	}
	if result == nil {
		return nil
	}
	result.ErrorFormat = listFormat
	return result.ErrorOrNil()
}

func listFormat(es []error) string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d source(s) failed: %s", len(es), strings.Join(msgs, "; "))
}

// Totals sums the counters of all sources
func (r *RunReport) Totals() SourceReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	var t SourceReport
	t.Source = "TOTAL"
	for _, s := range r.Sources {
		t.Pages += s.Pages
		t.Fetched += s.Fetched
		t.Validated += s.Validated
		t.Rejected += s.Rejected
		t.Written += s.Written
		t.Duplicates += s.Duplicates
	}
	return t
}

// ExitCode maps the run outcome to a process exit status. A failed source
// wins over an interruption.
func (r *RunReport) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	interrupted := false
	for _, s := range r.Sources {
		switch s.Outcome {
		case OutcomeFailed:
			return ExitFailed
		case OutcomeInterrupted:
			interrupted = true
		}
	}
	if interrupted {
		return ExitInterrupted
	}
	return ExitOK
}

// Path returns the report file location inside dir
func (r *RunReport) Path(dir string) string {
	return filepath.Join(dir, "run-"+r.RunID+".json")
}

// Save writes the report to dir atomically and returns its path
func (r *RunReport) Save(dir string) (string, error) {
	r.mu.Lock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := r.Path(dir)
	tmp, err := os.CreateTemp(dir, ".run-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to publish report file: %w", err)
	}
	return path, nil
}

// Load reads a saved run report
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}

	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run report: %w", err)
	}
	return &r, nil
}

// Latest returns the most recently finished report in dir, or nil when
// there is none
func Latest(dir string) (*RunReport, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "run-*.json"))
	if err != nil {
		return nil, err
	}

	var latest *RunReport
	for _, p := range paths {
		r, err := Load(p)
		if err != nil {
			continue
		}
		if latest == nil || r.FinishedAt.After(latest.FinishedAt) {
			latest = r
		}
	}
	return latest, nil
}
