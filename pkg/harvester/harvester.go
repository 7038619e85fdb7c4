// Package harvester drives the resumable fetch, validate, write and
// checkpoint cycle for each configured source.
//
// A source's checkpoint is advanced only after the page's records are
// durably in the sink. A crash between the two replays that page on the
// next run; the sink drops the replayed records by issue key.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jiraharvest/internal/workerpool"
	"jiraharvest/pkg/checkpoint"
	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/models"
	"jiraharvest/pkg/report"
	"jiraharvest/pkg/storage"
	"jiraharvest/pkg/validator"
)

// DefaultPageSize matches the page size the tracker serves by default
const DefaultPageSize = 50

// PageFetcher fetches one page of a source
type PageFetcher interface {
	FetchPage(ctx context.Context, source string, cursor, pageSize int) (*models.Page, error)
}

// RejectRecorder receives items that failed validation
type RejectRecorder interface {
	Record(ctx context.Context, sourceID string, rejections []*models.Rejection) error
}

// Options tunes a Harvester. Zero values select defaults.
type Options struct {
	PageSize    int
	Concurrency int
	Rejects     RejectRecorder
	Observer    Observer
	Logger      logger.Logger
	Now         func() time.Time
}

// Harvester runs sources to completion, failure or interruption
type Harvester struct {
	fetcher     PageFetcher
	sink        storage.Sink
	checkpoints checkpoint.Store
	rejects     RejectRecorder
	observer    Observer
	pageSize    int
	concurrency int
	logger      logger.Logger
	now         func() time.Time
}

// New creates a Harvester
func New(fetcher PageFetcher, sink storage.Sink, checkpoints checkpoint.Store, opts Options) (*Harvester, error) {
	if fetcher == nil || sink == nil || checkpoints == nil {
		return nil, errors.New("harvester needs a fetcher, a sink and a checkpoint store")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Harvester{
		fetcher:     fetcher,
		sink:        sink,
		checkpoints: checkpoints,
		rejects:     opts.Rejects,
		observer:    opts.Observer,
		pageSize:    opts.PageSize,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		now:         opts.Now,
	}, nil
}

// Run harvests every source and returns the run report. Sources run one
// at a time unless Concurrency is above one; a failing source never stops
// the others.
func (h *Harvester) Run(ctx context.Context, sources []string) *report.RunReport {
	run := report.NewRun(h.now())
	log := h.logger.WithField("run_id", run.RunID)

	log.InfoWithFields("Harvest run started", map[string]interface{}{
		"sources":     sources,
		"page_size":   h.pageSize,
		"concurrency": h.concurrency,
	})

	jobs := make([]workerpool.Job, len(sources))
	for i, source := range sources {
		jobs[i] = workerpool.Job{
			ID: source,
			Run: func(ctx context.Context) error {
				sr := h.harvest(ctx, logger.ForSource(h.logger, source, run.RunID), source)
				run.Add(sr)
				return sr.Err
			},
		}
	}

	pool := workerpool.NewWorkerPool(h.concurrency, log)
	for _, res := range pool.Run(ctx, jobs) {
		now := h.now()
		sr := report.SourceReport{Source: res.ID, StartedAt: now}
		switch {
		case res.Skipped:
			// never started; its checkpoint is untouched
			sr.Finish(report.OutcomeInterrupted, nil, now)
		case res.Err != nil:
			// a job that panicked never recorded its outcome
			if _, ok := run.Source(res.ID); ok {
				continue
			}
			log.WithError(res.Err).ErrorWithFields("Source aborted", map[string]interface{}{
				"source": res.ID,
			})
			sr.Finish(report.OutcomeFailed, res.Err, now)
		default:
			continue
		}
		run.Add(sr)
	}

	run.Finish(h.now())
	total := run.Totals()
	log.InfoWithFields("Harvest run finished", map[string]interface{}{
		"written":   total.Written,
		"rejected":  total.Rejected,
		"exit_code": run.ExitCode(),
	})
	return run
}

// Harvest runs a single source from its checkpoint
func (h *Harvester) Harvest(ctx context.Context, source string) report.SourceReport {
	return h.harvest(ctx, logger.ForSource(h.logger, source, ""), source)
}

func (h *Harvester) harvest(ctx context.Context, log logger.Logger, source string) report.SourceReport {
	sr := report.SourceReport{Source: source, StartedAt: h.now()}
	m := newMachine(source, h.observer)

	finish := func(state State, err error) report.SourceReport {
		m.to(state)
		outcome := report.OutcomeCompleted
		switch state {
		case StateFailed:
			outcome = report.OutcomeFailed
		case StateInterrupted:
			outcome = report.OutcomeInterrupted
			err = nil
		}
		sr.Finish(outcome, err, h.now())
		l := log
		if err != nil {
			l = log.WithError(err)
		}
		logger.LogSourceSummary(l, string(state), sr.Pages, sr.Written, sr.Rejected, sr.Duration())
		return sr
	}
	// stop classifies err as an interruption when ctx ended
	stop := func(err error) report.SourceReport {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return finish(StateInterrupted, nil)
		}
		return finish(StateFailed, err)
	}

	m.to(StateLoading)
	if err := models.CheckSourceID(source); err != nil {
		return finish(StateFailed, errs.Wrap(errs.ErrorTypeValidation, err, "load source"))
	}
	cursor, err := h.checkpoints.Load(ctx, source)
	if err != nil {
		return stop(fmt.Errorf("load checkpoint: %w", err))
	}
	sr.StartCursor, sr.EndCursor = cursor, cursor
	log.InfoWithFields("Harvesting source", map[string]interface{}{"cursor": cursor})

	for {
		if ctx.Err() != nil {
			return finish(StateInterrupted, nil)
		}

		m.to(StateFetching)
		page, err := h.fetcher.FetchPage(ctx, source, cursor, h.pageSize)
		if err != nil {
			return stop(err)
		}
		sr.Pages++
		sr.Fetched += len(page.Items)

		m.to(StateValidating)
		records, rejections := h.validate(ctx, log, source, page)
		sr.Validated += len(records)
		sr.Rejected += len(rejections)

		m.to(StateWriting)
		res, err := h.sink.Append(ctx, source, records)
		if err != nil {
			return stop(fmt.Errorf("write page at %d: %w", cursor, err))
		}
		sr.Written += res.Written
		sr.Duplicates += res.Duplicates

		m.to(StateCheckpointing)
		next := page.Next()
		if next > cursor {
			// the page is durable; record it even if ctx ended meanwhile
			if err := h.checkpoints.Advance(context.WithoutCancel(ctx), source, next); err != nil {
				return finish(StateFailed, fmt.Errorf("advance checkpoint to %d: %w", next, err))
			}
			sr.EndCursor = next
		}
		logger.LogPage(log, cursor, next, len(records), len(rejections))
		cursor = next

		if page.Last {
			return finish(StateDone, nil)
		}
	}
}

// validate splits a page into records and rejections, sending the latter to
// the reject side log
func (h *Harvester) validate(ctx context.Context, log logger.Logger, source string, page *models.Page) ([]*models.NormalizedRecord, []*models.Rejection) {
	records := make([]*models.NormalizedRecord, 0, len(page.Items))
	var rejections []*models.Rejection

	for _, item := range page.Items {
		res := validator.Validate(item)
		if res.Accepted() {
			records = append(records, res.Record)
			continue
		}
		rej := res.Rejection
		rej.Source = source
		rej.RejectedAt = h.now().UTC()
		rejections = append(rejections, rej)
		logger.LogRejection(log, rej.IssueKey, rej.Field+": "+rej.Reason)
	}

	if h.rejects != nil && len(rejections) > 0 {
		if err := h.rejects.Record(ctx, source, rejections); err != nil {
			log.WithError(err).Warn("Failed to record rejections")
		}
	}
	return records, rejections
}
