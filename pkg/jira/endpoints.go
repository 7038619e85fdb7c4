package jira

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the public Apache Jira instance
	DefaultBaseURL = "https://issues.apache.org/jira"

	// SearchEndpoint is the REST v2 issue search path
	SearchEndpoint = "/rest/api/2/search"

	// MaxPageSize is the largest maxResults Jira accepts
	MaxPageSize = 1000
)

// DefaultFields is the field subset requested for every issue
var DefaultFields = []string{
	"summary", "description", "comment", "status", "priority",
	"labels", "issuetype", "reporter", "assignee", "created", "updated",
	"project",
}

// ProjectJQL returns a query over one project in a stable order. The key
// tiebreak keeps issues created in the same millisecond in a fixed order.
func ProjectJQL(projectKey string) string {
	escaped := strings.ReplaceAll(projectKey, `"`, `\"`)
	return fmt.Sprintf(`project = "%s" ORDER BY created ASC, key ASC`, escaped)
}

// SearchURL builds the full search URL for a request
func SearchURL(baseURL string, req SearchRequest) string {
	params := url.Values{}
	params.Set("jql", req.JQL)
	params.Set("startAt", strconv.Itoa(req.StartAt))
	params.Set("maxResults", strconv.Itoa(req.MaxResults))
	if len(req.Fields) > 0 {
		params.Set("fields", strings.Join(req.Fields, ","))
	}

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), SearchEndpoint, params.Encode())
}
