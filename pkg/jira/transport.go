package jira

import (
	"context"

	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/retry"
)

// Transport wraps a Searcher with the retry policy. Every attempt issues a
// fresh request built from the same SearchRequest.
type Transport struct {
	searcher Searcher
	policy   *retry.Config
	logger   logger.Logger
}

// NewTransport creates a retrying transport. A nil policy uses
// retry.DefaultConfig.
func NewTransport(s Searcher, policy *retry.Config, log logger.Logger) *Transport {
	if log == nil {
		log = logger.GetLogger()
	}
	if policy == nil {
		policy = retry.DefaultConfig()
	}
	if policy.Logger == nil {
		p := *policy
		p.Logger = log
		policy = &p
	}
	return &Transport{searcher: s, policy: policy, logger: log}
}

// Execute runs the search, retrying transient failures. Terminal errors
// are returned on first occurrence.
func (t *Transport) Execute(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*SearchResponse, error) {
		return t.searcher.Search(ctx, req)
	}, t.policy)
}
