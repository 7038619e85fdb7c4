// Package jira talks to the Jira REST v2 search API.
//
// Client performs single search calls and maps HTTP failures onto the
// error taxonomy in pkg/errors: network failures, 429 and 5xx are
// transient; other 4xx and undecodable bodies are terminal. Transport
// layers the retry policy on top.
//
//	client := jira.NewClient(cfg.Jira, log)
//	transport := jira.NewTransport(client, retry.FromConfig(cfg.Retry, log), log)
//	resp, err := transport.Execute(ctx, jira.SearchRequest{
//	    JQL:        jira.ProjectJQL("KAFKA"),
//	    StartAt:    0,
//	    MaxResults: 50,
//	    Fields:     jira.DefaultFields,
//	})
package jira
