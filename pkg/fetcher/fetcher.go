// Package fetcher turns a (source, cursor, page size) position into one
// page of raw issues and decides whether the source is exhausted.
package fetcher

import (
	"context"
	"fmt"
	"strings"

	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/jira"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/models"
	"jiraharvest/pkg/ratelimit"
)

// Executor runs one search request, retrying as its policy allows
type Executor interface {
	Execute(ctx context.Context, req jira.SearchRequest) (*jira.SearchResponse, error)
}

// Fetcher fetches pages for a source in a stable order
type Fetcher struct {
	exec    Executor
	limiter ratelimit.Limiter
	fields  []string
	logger  logger.Logger
}

// New creates a Fetcher. A nil limiter disables pacing.
func New(exec Executor, limiter ratelimit.Limiter, log logger.Logger) *Fetcher {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		exec:    exec,
		limiter: limiter,
		fields:  jira.DefaultFields,
		logger:  log,
	}
}

// FetchPage returns the page of source starting at cursor
func (f *Fetcher) FetchPage(ctx context.Context, source string, cursor, pageSize int) (*models.Page, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errs.New(errs.ErrorTypeValidation, 0, "source identifier is empty")
	}
	if cursor < 0 {
		return nil, errs.New(errs.ErrorTypeValidation, 0, "cursor must be non-negative, got %d", cursor)
	}
	if pageSize <= 0 || pageSize > jira.MaxPageSize {
		return nil, errs.New(errs.ErrorTypeValidation, 0, "page size must be between 1 and %d, got %d", jira.MaxPageSize, pageSize)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := f.exec.Execute(ctx, jira.SearchRequest{
		JQL:        jira.ProjectJQL(source),
		StartAt:    cursor,
		MaxResults: pageSize,
		Fields:     f.fields,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s at %d: %w", source, cursor, err)
	}

	page := &models.Page{
		Source:     source,
		StartAt:    cursor,
		MaxResults: pageSize,
		Total:      models.UnknownTotal,
		Items:      resp.Issues,
	}
	if page.Items == nil {
		page.Items = []models.RawItem{}
	}
	if resp.Total != nil {
		page.Total = *resp.Total
	}
	// Jira silently caps maxResults; a page of the capped size is full
	if resp.MaxResults > 0 && resp.MaxResults < pageSize {
		page.MaxResults = resp.MaxResults
	}
	page.Last = isLast(page)

	f.logger.DebugWithFields("page fetched", map[string]interface{}{
		"source": source,
		"cursor": cursor,
		"items":  len(page.Items),
		"total":  page.Total,
		"last":   page.Last,
	})
	return page, nil
}

// isLast reports whether no items exist beyond page
func isLast(p *models.Page) bool {
	n := len(p.Items)
	switch {
	case n == 0:
		return true
	case n < p.MaxResults:
		return true
	case p.Total != models.UnknownTotal && p.StartAt+n >= p.Total:
		return true
	default:
		return false
	}
}
