package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteTokenGuide prints how to obtain a Jira API token
func WriteTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "JIRA API TOKEN")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Public trackers such as issues.apache.org serve issues anonymously;")
	fmt.Fprintln(w, "credentials are only needed for private projects or higher rate limits.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Jira Cloud:")
	fmt.Fprintln(w, "  1. Open https://id.atlassian.com/manage-profile/security/api-tokens")
	fmt.Fprintln(w, "  2. Create an API token and copy it")
	fmt.Fprintln(w, "  3. Use your account email together with the token")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Jira Server / Data Center:")
	fmt.Fprintln(w, "  Use your username as the email and a personal access token or password.")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The token can also be given via %s and %s.\n", EmailEnv, APITokenEnv)
	fmt.Fprintln(w, rule)
}
