package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsScript(t *testing.T) {
	out := Sanitize("hello <script>alert(1)</script> world")
	assert.NotContains(t, out.HTML, "<script")
	assert.Contains(t, out.HTML, "hello")
}

func TestSanitizeDetectsLinks(t *testing.T) {
	out := Sanitize("check https://example.com and http://other.example")
	assert.True(t, out.ContainsLinks)
	assert.Equal(t, 2, out.LinkCount)

	clean := Sanitize("no links here")
	assert.False(t, clean.ContainsLinks)
}

func TestExtractMentions(t *testing.T) {
	mentions := ExtractMentions("thanks @Alice and @bob, also @alice again")
	assert.Equal(t, []string{"alice", "bob"}, mentions)
}

func TestExtractMentionsIgnoresEmails(t *testing.T) {
	mentions := ExtractMentions("mail me at someone@example.com")
	assert.Empty(t, mentions)
}
