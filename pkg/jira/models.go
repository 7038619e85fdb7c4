package jira

import (
	"jiraharvest/pkg/models"
)

// SearchRequest fully describes one search call. It carries no state
// between attempts.
type SearchRequest struct {
	JQL        string
	StartAt    int
	MaxResults int
	Fields     []string
}

// SearchResponse is the body of a /search response. Total is nil when the
// server omitted it.
type SearchResponse struct {
	StartAt    int              `json:"startAt"`
	MaxResults int              `json:"maxResults"`
	Total      *int             `json:"total"`
	Issues     []models.RawItem `json:"issues"`
}

// errorResponse is the standard Jira error body
type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
