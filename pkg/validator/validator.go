// Package validator converts raw issues into normalized corpus records.
//
// Validate is pure: it performs no I/O, never panics on malformed input and
// returns either a record or a rejection naming the offending field.
package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"jiraharvest/pkg/cleaner"
	"jiraharvest/pkg/models"
)

// JiraTimeLayout is the timestamp format of Jira REST v2
const JiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// CommentSeparator joins cleaned comment bodies
const CommentSeparator = "\n---\n"

// Result is either an accepted record or a rejection, never both
type Result struct {
	Record    *models.NormalizedRecord
	Rejection *models.Rejection
}

// Accepted reports whether the item produced a record
func (r Result) Accepted() bool {
	return r.Record != nil
}

func reject(key, field, format string, args ...interface{}) Result {
	return Result{Rejection: &models.Rejection{
		IssueKey: key,
		Field:    field,
		Reason:   fmt.Sprintf(format, args...),
	}}
}

// fieldError carries the failing field out of the extraction helpers
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string { return e.field + ": " + e.reason }

// Validate maps one raw issue onto the record schema
func Validate(item models.RawItem) Result {
	if item == nil {
		return reject("", "item", "item is null")
	}

	key, ok := item["key"].(string)
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return reject("", "key", "missing or not a string")
	}

	fields, ok := item["fields"].(map[string]any)
	if !ok {
		return reject(key, "fields", "missing or not an object")
	}

	rec, err := normalize(key, fields)
	if err != nil {
		return reject(key, err.field, "%s", err.reason)
	}
	return Result{Record: rec}
}

func normalize(key string, fields map[string]any) (*models.NormalizedRecord, *fieldError) {
	rec := &models.NormalizedRecord{IssueKey: key}
	var err *fieldError

	if rec.Project, err = requiredName(fields, "project"); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = timestamp(fields, "created"); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = timestamp(fields, "updated"); err != nil {
		return nil, err
	}
	if rec.Status, err = requiredName(fields, "status"); err != nil {
		return nil, err
	}
	if rec.Priority, err = requiredName(fields, "priority"); err != nil {
		return nil, err
	}
	if rec.IssueType, err = requiredName(fields, "issuetype"); err != nil {
		return nil, err
	}

	summary, present := fields["summary"]
	title, isString := summary.(string)
	if !present || !isString {
		return nil, &fieldError{"summary", "missing or not a string"}
	}
	rec.Title = strings.TrimSpace(title)

	if rec.Labels, err = labels(fields); err != nil {
		return nil, err
	}
	if rec.Reporter, err = optionalName(fields, "reporter"); err != nil {
		return nil, err
	}
	if rec.Assignee, err = optionalName(fields, "assignee"); err != nil {
		return nil, err
	}
	if rec.DescriptionText, err = optionalText(fields, "description"); err != nil {
		return nil, err
	}
	if rec.CommentsText, rec.CommentCount, err = comments(fields); err != nil {
		return nil, err
	}

	rec.ContentHash = contentHash(rec)
	rec.DerivedTasks = DeriveTasks(rec)
	return rec, nil
}

// nameOf returns displayName, falling back to name. ok is false when v is
// present but not an object.
func nameOf(v any) (name string, ok bool) {
	if v == nil {
		return "", true
	}
	obj, isObj := v.(map[string]any)
	if !isObj {
		return "", false
	}
	if s, _ := obj["displayName"].(string); strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s), true
	}
	s, _ := obj["name"].(string)
	return strings.TrimSpace(s), true
}

func requiredName(fields map[string]any, field string) (string, *fieldError) {
	name, ok := nameOf(fields[field])
	if !ok {
		return "", &fieldError{field, "expected an object"}
	}
	if name == "" {
		return "", &fieldError{field, "missing name"}
	}
	return name, nil
}

func optionalName(fields map[string]any, field string) (*string, *fieldError) {
	name, ok := nameOf(fields[field])
	if !ok {
		return nil, &fieldError{field, "expected an object or null"}
	}
	if name == "" {
		return nil, nil
	}
	return &name, nil
}

func optionalText(fields map[string]any, field string) (*string, *fieldError) {
	v := fields[field]
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &fieldError{field, "expected a string or null"}
	}
	cleaned := cleaner.Clean(s)
	return &cleaned, nil
}

func timestamp(fields map[string]any, field string) (string, *fieldError) {
	s, ok := fields[field].(string)
	if !ok || s == "" {
		return "", &fieldError{field, "missing or not a string"}
	}
	t, err := parseTime(s)
	if err != nil {
		return "", &fieldError{field, fmt.Sprintf("unparsable timestamp %q", s)}
	}
	return t.Format(time.RFC3339), nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(JiraTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func labels(fields map[string]any) ([]string, *fieldError) {
	v := fields["labels"]
	if v == nil {
		return []string{}, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, &fieldError{"labels", "expected an array"}
	}
	out := make([]string, 0, len(raw))
	for i, l := range raw {
		s, ok := l.(string)
		if !ok {
			return nil, &fieldError{"labels", fmt.Sprintf("element %d is not a string", i)}
		}
		out = append(out, s)
	}
	return out, nil
}

// comments joins the cleaned comment bodies. A missing comment block and an
// empty comment list both yield nil.
func comments(fields map[string]any) (*string, int, *fieldError) {
	v := fields["comment"]
	if v == nil {
		return nil, 0, nil
	}
	block, ok := v.(map[string]any)
	if !ok {
		return nil, 0, &fieldError{"comment", "expected an object or null"}
	}
	if block["comments"] == nil {
		return nil, 0, nil
	}
	list, ok := block["comments"].([]any)
	if !ok {
		return nil, 0, &fieldError{"comment", "comments is not an array"}
	}
	if len(list) == 0 {
		return nil, 0, nil
	}

	bodies := make([]string, 0, len(list))
	for i, c := range list {
		obj, ok := c.(map[string]any)
		if !ok {
			return nil, 0, &fieldError{"comment", fmt.Sprintf("comment %d is not an object", i)}
		}
		body, _ := obj["body"].(string)
		bodies = append(bodies, cleaner.Clean(body))
	}
	joined := strings.Join(bodies, CommentSeparator)
	return &joined, len(list), nil
}

func contentHash(rec *models.NormalizedRecord) string {
	d := xxhash.New()
	_, _ = d.WriteString(rec.Title)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(deref(rec.DescriptionText))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(deref(rec.CommentsText))
	return fmt.Sprintf("%016x", d.Sum64())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
