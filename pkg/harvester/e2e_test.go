package harvester

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jiraharvest/pkg/config"
	"jiraharvest/pkg/fetcher"
	"jiraharvest/pkg/jira"
	"jiraharvest/pkg/ratelimit"
	"jiraharvest/pkg/report"
	"jiraharvest/pkg/retry"
)

// mockJira serves a project of n issues, capping maxResults at maxPage and
// answering the first request with 429
type mockJira struct {
	issues   int
	maxPage  int
	requests int32
}

func (m *mockJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != jira.SearchEndpoint {
		http.NotFound(w, r)
		return
	}
	if atomic.AddInt32(&m.requests, 1) == 1 {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	q := r.URL.Query()
	startAt, _ := strconv.Atoi(q.Get("startAt"))
	maxResults, _ := strconv.Atoi(q.Get("maxResults"))
	maxResults = min(maxResults, m.maxPage)

	var out []map[string]any
	for i := startAt; i < m.issues && len(out) < maxResults; i++ {
		out = append(out, issue("KAFKA", i+1))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"startAt":    startAt,
		"maxResults": maxResults,
		"total":      m.issues,
		"issues":     out,
	})
}

func TestEndToEndAgainstMockServer(t *testing.T) {
	mock := &mockJira{issues: 7, maxPage: 3}
	srv := httptest.NewServer(mock)
	defer srv.Close()

	e := newEnv(t)
	client := jira.NewClient(config.JiraConfig{
		BaseURL:   srv.URL,
		UserAgent: "jiraharvest-test",
		Timeout:   5 * time.Second,
	}, e.log)
	transport := jira.NewTransport(client, &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
	}, e.log)

	h, err := New(fetcher.New(transport, ratelimit.Unlimited{}, e.log), e.sink, e.store, Options{
		PageSize: 5,
		Rejects:  e.rejects,
		Logger:   e.log,
	})
	require.NoError(t, err)

	run := h.Run(context.Background(), []string{"KAFKA"})

	require.NoError(t, run.Err())
	sr, ok := run.Source("KAFKA")
	require.True(t, ok)
	assert.Equal(t, report.OutcomeCompleted, sr.Outcome)
	assert.Equal(t, 3, sr.Pages, "pages of 3, 3 and 1 under the server cap")
	assert.Equal(t, 7, sr.Written)
	assert.Equal(t, 7, e.cursor(t, "KAFKA"))
	assert.Equal(t, int32(4), atomic.LoadInt32(&mock.requests), "one rate limited request plus three pages")

	keys := corpusKeys(t, e, "KAFKA")
	assert.Equal(t, []string{"KAFKA-1", "KAFKA-2", "KAFKA-3", "KAFKA-4", "KAFKA-5", "KAFKA-6", "KAFKA-7"}, keys)

	path, err := run.Save(e.dir)
	require.NoError(t, err)
	saved, err := report.Load(path)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, saved.RunID)
}
