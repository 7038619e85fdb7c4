package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jiraharvest/pkg/config"
	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *logger.TestLogger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger()
	client := NewClient(config.JiraConfig{
		BaseURL:   srv.URL + "/",
		UserAgent: "jiraharvest-test",
		Email:     "bot@example.com",
		APIToken:  "token",
		Timeout:   5 * time.Second,
	}, log)
	return client, log
}

func searchRequest() SearchRequest {
	return SearchRequest{JQL: ProjectJQL("KAFKA"), StartAt: 50, MaxResults: 25, Fields: DefaultFields}
}

func TestSearchSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SearchEndpoint, r.URL.Path)
		assert.Equal(t, `project = "KAFKA" ORDER BY created ASC, key ASC`, r.URL.Query().Get("jql"))
		assert.Equal(t, "50", r.URL.Query().Get("startAt"))
		assert.Equal(t, "25", r.URL.Query().Get("maxResults"))
		assert.Contains(t, r.URL.Query().Get("fields"), "issuetype")
		assert.Equal(t, "jiraharvest-test", r.Header.Get("User-Agent"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "token", pass)

		fmt.Fprint(w, `{"startAt":50,"maxResults":25,"total":52,"issues":[{"key":"KAFKA-51","fields":{"summary":"a"}},{"key":"KAFKA-52"}]}`)
	})

	resp, err := client.Search(context.Background(), searchRequest())
	require.NoError(t, err)
	assert.Equal(t, 50, resp.StartAt)
	assert.Equal(t, 25, resp.MaxResults)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 52, *resp.Total)
	require.Len(t, resp.Issues, 2)
	assert.Equal(t, "KAFKA-51", resp.Issues[0].Key())
}

func TestSearchWithoutTotal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"startAt":0,"maxResults":50,"issues":[]}`)
	})

	resp, err := client.Search(context.Background(), searchRequest())
	require.NoError(t, err)
	assert.Nil(t, resp.Total)
}

func TestSearchStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   errs.ErrorType
		msg    string
	}{
		{http.StatusBadRequest, `{"errorMessages":["The value 'NOPE' does not exist for the field 'project'."]}`, errs.ErrorTypeClient, "does not exist"},
		{http.StatusUnauthorized, ``, errs.ErrorTypeAuth, "unauthorized"},
		{http.StatusForbidden, ``, errs.ErrorTypeAuth, "forbidden"},
		{http.StatusNotFound, ``, errs.ErrorTypeNotFound, "not found"},
		{http.StatusTooManyRequests, ``, errs.ErrorTypeRateLimit, "too many requests"},
		{http.StatusInternalServerError, ``, errs.ErrorTypeServerError, "internal server error"},
		{http.StatusBadGateway, ``, errs.ErrorTypeServerError, "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.Search(context.Background(), searchRequest())
			require.Error(t, err)

			var apiErr *errs.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Type)
			assert.Equal(t, tt.status, apiErr.Code)
			assert.Contains(t, apiErr.Message, tt.msg)
		})
	}
}

func TestSearchRetryAfterHeader(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), searchRequest())
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
}

func TestSearchMalformedJSON(t *testing.T) {
	client, log := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"issues": [`)
	})

	_, err := client.Search(context.Background(), searchRequest())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestSearchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(config.JiraConfig{BaseURL: srv.URL}, logger.NewNopLogger())
	_, err := client.Search(context.Background(), searchRequest())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
}

func TestSearchCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"issues":[]}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, searchRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-4", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter("Wed, 01 May 2024 12:01:30 GMT", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 01 May 2024 11:00:00 GMT", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}

func TestParseRetryAfterCapped(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, maxRetryAfter, parseRetryAfter("99999999999", now))
	assert.Equal(t, maxRetryAfter, parseRetryAfter("86400", now))
	assert.Equal(t, maxRetryAfter, parseRetryAfter("Thu, 02 May 2024 12:00:00 GMT", now))
	assert.Equal(t, maxRetryAfter, parseRetryAfter("900", now))
}
