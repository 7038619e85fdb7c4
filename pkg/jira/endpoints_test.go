package jira

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectJQL(t *testing.T) {
	assert.Equal(t, `project = "SPARK" ORDER BY created ASC, key ASC`, ProjectJQL("SPARK"))
	assert.Equal(t, `project = "A\"B" ORDER BY created ASC, key ASC`, ProjectJQL(`A"B`))
}

func TestSearchURL(t *testing.T) {
	raw := SearchURL("https://issues.apache.org/jira/", SearchRequest{
		JQL:        ProjectJQL("KAFKA"),
		StartAt:    100,
		MaxResults: 50,
		Fields:     []string{"summary", "status"},
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/jira/rest/api/2/search", u.Path)
	assert.Equal(t, "100", u.Query().Get("startAt"))
	assert.Equal(t, "50", u.Query().Get("maxResults"))
	assert.Equal(t, "summary,status", u.Query().Get("fields"))
}
