package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/jira"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/models"
)

type fakeExecutor struct {
	requests []jira.SearchRequest
	respond  func(req jira.SearchRequest) (*jira.SearchResponse, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, req jira.SearchRequest) (*jira.SearchResponse, error) {
	f.requests = append(f.requests, req)
	return f.respond(req)
}

func items(n int) []models.RawItem {
	out := make([]models.RawItem, n)
	for i := range out {
		out[i] = models.RawItem{"key": "KAFKA-" + string(rune('A'+i))}
	}
	return out
}

func intPtr(v int) *int { return &v }

type waitCounter struct{ waits int }

func (w *waitCounter) Allow() bool { return true }
func (w *waitCounter) Wait(ctx context.Context) error {
	w.waits++
	return ctx.Err()
}
func (w *waitCounter) Reset() {}

func TestFetchPageBuildsStableQuery(t *testing.T) {
	exec := &fakeExecutor{respond: func(req jira.SearchRequest) (*jira.SearchResponse, error) {
		return &jira.SearchResponse{StartAt: req.StartAt, MaxResults: req.MaxResults, Total: intPtr(200), Issues: items(25)}, nil
	}}
	limiter := &waitCounter{}
	f := New(exec, limiter, logger.NewNopLogger())

	page, err := f.FetchPage(context.Background(), "KAFKA", 50, 25)
	require.NoError(t, err)

	require.Len(t, exec.requests, 1)
	req := exec.requests[0]
	assert.Equal(t, `project = "KAFKA" ORDER BY created ASC, key ASC`, req.JQL)
	assert.Equal(t, 50, req.StartAt)
	assert.Equal(t, 25, req.MaxResults)
	assert.Equal(t, jira.DefaultFields, req.Fields)
	assert.Equal(t, 1, limiter.waits)

	assert.Equal(t, "KAFKA", page.Source)
	assert.Equal(t, 50, page.StartAt)
	assert.Equal(t, 200, page.Total)
	assert.Equal(t, 75, page.Next())
	assert.False(t, page.Last)
}

func TestFetchPageEndOfSource(t *testing.T) {
	tests := []struct {
		name     string
		resp     *jira.SearchResponse
		pageSize int
		cursor   int
		wantLast bool
	}{
		{"empty page", &jira.SearchResponse{Issues: nil}, 50, 0, true},
		{"short page", &jira.SearchResponse{MaxResults: 50, Issues: items(10)}, 50, 0, true},
		{"full page reaching total", &jira.SearchResponse{MaxResults: 50, Total: intPtr(100), Issues: items(50)}, 50, 50, true},
		{"full page below total", &jira.SearchResponse{MaxResults: 50, Total: intPtr(101), Issues: items(50)}, 50, 50, false},
		{"full page unknown total", &jira.SearchResponse{MaxResults: 50, Issues: items(50)}, 50, 0, false},
		{"server capped page size", &jira.SearchResponse{MaxResults: 20, Total: intPtr(1000), Issues: items(20)}, 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{respond: func(jira.SearchRequest) (*jira.SearchResponse, error) { return tt.resp, nil }}
			page, err := New(exec, nil, logger.NewNopLogger()).FetchPage(context.Background(), "KAFKA", tt.cursor, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLast, page.Last)
			assert.NotNil(t, page.Items)
		})
	}
}

func TestFetchPageRejectsBadArguments(t *testing.T) {
	exec := &fakeExecutor{respond: func(jira.SearchRequest) (*jira.SearchResponse, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	f := New(exec, nil, logger.NewNopLogger())

	_, err := f.FetchPage(context.Background(), " ", 0, 50)
	assert.True(t, errs.Is(err, errs.ErrorTypeValidation))
	_, err = f.FetchPage(context.Background(), "KAFKA", -1, 50)
	assert.True(t, errs.Is(err, errs.ErrorTypeValidation))
	_, err = f.FetchPage(context.Background(), "KAFKA", 0, 0)
	assert.True(t, errs.Is(err, errs.ErrorTypeValidation))
}

func TestFetchPagePropagatesTransportErrors(t *testing.T) {
	terminal := errs.New(errs.ErrorTypeAuth, 401, "unauthorized")
	exec := &fakeExecutor{respond: func(jira.SearchRequest) (*jira.SearchResponse, error) { return nil, terminal }}

	_, err := New(exec, nil, logger.NewNopLogger()).FetchPage(context.Background(), "KAFKA", 0, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, terminal))
	assert.Contains(t, err.Error(), "fetch KAFKA at 0")
}

func TestFetchPageCancelledBeforeRequest(t *testing.T) {
	exec := &fakeExecutor{respond: func(jira.SearchRequest) (*jira.SearchResponse, error) {
		return &jira.SearchResponse{}, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(exec, &waitCounter{}, logger.NewNopLogger()).FetchPage(ctx, "KAFKA", 0, 50)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exec.requests)
}
