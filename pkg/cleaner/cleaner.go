// Package cleaner strips Jira wiki markup from free text.
package cleaner

import (
	"regexp"
	"strings"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules are applied in order on every pass
var rules = []rule{
	{regexp.MustCompile(`(?is)\{code:.*?\}`), " "},
	{regexp.MustCompile(`(?is)\{noformat\}`), " "},
	{regexp.MustCompile(`(?is)\{quote\}`), " "},
	{regexp.MustCompile(`(?is)\{panel:.*?\}`), " "},
	{regexp.MustCompile(`(?i)!image.png\|thumbnail!`), " "},
	// [label|target] keeps the label
	{regexp.MustCompile(`\[(.*?)\|.*?\]`), "$1"},
	{regexp.MustCompile(`\[(https?|ftp)://.*?\]`), " "},
	// *bold* _italic_ -strike- +under+ ^super^ ~sub~
	{regexp.MustCompile(`[\*_+\^~-]`), ""},
	{regexp.MustCompile(`\{color:.*?\}`), ""},
	{regexp.MustCompile(`\s+`), " "},
}

// Clean removes markup and collapses whitespace. Removing formatting
// characters can expose a new macro (e.g. "{co-de:x}"), so the rules are
// reapplied until the text stops changing. Clean(Clean(s)) == Clean(s).
//
// The loop ends: a pass that changes the text either shortens it or only
// turns non-space whitespace into spaces.
func Clean(text string) string {
	for {
		next := pass(text)
		if next == text {
			return text
		}
		text = next
	}
}

func pass(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return strings.TrimSpace(text)
}
