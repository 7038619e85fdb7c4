package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jiraharvest/pkg/config"
	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

// Searcher performs one search call without retrying
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// Client is a minimal Jira REST v2 client
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	email      string
	apiToken   string
	logger     logger.Logger
}

// NewClient creates a client for the configured Jira instance
func NewClient(cfg config.JiraConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	headers := map[string]string{
		"Accept": "application/json",
	}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      cfg.Email,
		apiToken:   cfg.APIToken,
		logger:     log,
	}
}

// Search performs exactly one GET against the search endpoint and
// classifies any failure.
func (c *Client) Search(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	url := SearchURL(c.baseURL, sr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeClient, err, "failed to create request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e := errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
		e.Code = resp.StatusCode
		return nil, e
	}

	if err := c.checkResponseStatus(resp, body); err != nil {
		return nil, err
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		e := errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse search response")
		e.Code = resp.StatusCode
		return nil, e
	}

	return &out, nil
}

// doRequest sends req with the configured headers and credentials
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.email != "" && c.apiToken != "" {
		req.SetBasicAuth(c.email, c.apiToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// checkResponseStatus maps a non-2xx response to a classified error
func (c *Client) checkResponseStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	typ := errs.TypeForStatus(resp.StatusCode)
	e := errs.New(typ, resp.StatusCode, "%s", describeFailure(resp.StatusCode, body))

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return e
}

// describeFailure extracts Jira's error messages, falling back to the
// status text
func describeFailure(status int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		msgs := append([]string{}, er.ErrorMessages...)
		for field, msg := range er.Errors {
			msgs = append(msgs, field+": "+msg)
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return fmt.Sprintf("unexpected status code: %d", status)
}

// maxRetryAfter bounds any server-requested wait
const maxRetryAfter = 15 * time.Minute

// parseRetryAfter accepts delta-seconds or an HTTP date, capped at
// maxRetryAfter
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		if secs > int(maxRetryAfter/time.Second) {
			return maxRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return min(d, maxRetryAfter)
		}
	}
	return 0
}

func preview(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}
