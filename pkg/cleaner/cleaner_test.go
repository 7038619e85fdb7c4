package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Broker fails to start", "Broker fails to start"},
		{"code macro", "before {code:java}int x;{code} after", "before int x;{code} after"},
		{"noformat and quote", "{noformat}stack{noformat} and {quote}said{quote}", "stack and said"},
		{"panel", "{panel:title=Note}hello{panel}", "hello{panel}"},
		{"thumbnail", "see !image.png|thumbnail! here", "see here"},
		{"labelled link", "see [the docs|https://kafka.apache.org] now", "see the docs now"},
		{"bare link", "see [https://kafka.apache.org] now", "see now"},
		{"formatting", "*bold* _italic_ -strike- +under+ ^sup^ ~sub~", "bold italic strike under sup sub"},
		{"color", "{color:red}alert{color}", "alert{color}"},
		{"whitespace", "  a\n\n\tb   c ", "a b c"},
		{"case insensitive macros", "{CODE:xml}<a/>{NoFormat}", "<a/>"},
		{"multiline code header", "{code:title=Foo.java\n|borderStyle=solid}body", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"{co-de:x} hidden behind a dash",
		"[a|b|c] nested [[x|y]|z]",
		"{col*or:blue}text",
		"**__--++",
		"![image.png|thumbnail]!",
		"{code:java}\nfoo\n{code}\n*emph* [link|http://x]\n{panel:bg=#fff}p{panel}",
		"    unicode space ",
	}

	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestCleanDeeplyNestedLinks(t *testing.T) {
	for _, depth := range []int{17, 20, 64} {
		in := strings.Repeat("[", depth) + "a" + strings.Repeat("|x]", depth)
		once := Clean(in)
		assert.Equal(t, "a", once, "depth %d", depth)
		assert.Equal(t, once, Clean(once), "depth %d", depth)
	}
}

func TestCleanExposedMacro(t *testing.T) {
	// The dash removal turns "{co-de:x}" into "{code:x}", which must go too
	assert.Equal(t, "hidden", Clean("{co-de:x} hidden"))
}
