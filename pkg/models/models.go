// Package models holds the data types shared by the fetch, validate and
// persist stages of a harvest.
package models

import (
	"fmt"
	"regexp"
	"time"
)

// UnknownTotal marks a page whose response did not report a total
const UnknownTotal = -1

// RawItem is one issue object as decoded from the remote API. Attributes
// may be absent or carry unexpected JSON types.
type RawItem map[string]any

// Key returns the issue key, or "" when it is missing or not a string
func (r RawItem) Key() string {
	k, _ := r["key"].(string)
	return k
}

// Fields returns the nested "fields" object, or nil
func (r RawItem) Fields() map[string]any {
	f, _ := r["fields"].(map[string]any)
	return f
}

// Page is the result of fetching one cursor position of a source
type Page struct {
	Source     string    `json:"source"`
	StartAt    int       `json:"start_at"`
	MaxResults int       `json:"max_results"`
	Total      int       `json:"total"`
	Items      []RawItem `json:"items"`
	// Last is true when no items exist beyond this page
	Last bool `json:"last"`
}

// Next returns the cursor of the page following this one
func (p *Page) Next() int {
	return p.StartAt + len(p.Items)
}

// DerivedTask is one instruction-tuning example built from an issue
type DerivedTask struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// NormalizedRecord is the validated output unit written to the corpus.
// Optional fields are nil when the source item lacked them and encode as
// JSON null.
type NormalizedRecord struct {
	IssueKey  string   `json:"issue_key"`
	Project   string   `json:"project"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	IssueType string   `json:"issue_type"`
	Title     string   `json:"title"`
	Labels    []string `json:"labels"`

	Reporter        *string `json:"reporter"`
	Assignee        *string `json:"assignee"`
	DescriptionText *string `json:"description_text"`
	CommentsText    *string `json:"comments_text"`

	CommentCount int           `json:"comment_count"`
	ContentHash  string        `json:"content_hash"`
	DerivedTasks []DerivedTask `json:"derived_tasks"`
}

// Rejection explains why a raw item produced no record
type Rejection struct {
	Source     string    `json:"source,omitempty"`
	IssueKey   string    `json:"issue_key"`
	Field      string    `json:"field"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

func (r *Rejection) Error() string {
	key := r.IssueKey
	if key == "" {
		key = "<no key>"
	}
	return fmt.Sprintf("issue %s rejected: %s: %s", key, r.Field, r.Reason)
}

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// CheckSourceID rejects identifiers that cannot safely name a file
func CheckSourceID(id string) error {
	if !sourceIDPattern.MatchString(id) {
		return fmt.Errorf("invalid source identifier %q", id)
	}
	return nil
}
