package util

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	policy = bluemonday.UGCPolicy()

	linkPattern    = regexp.MustCompile(`https?://[^\s<>"]+`)
	mentionPattern = regexp.MustCompile(`(^|[^\w@])@([a-zA-Z0-9_]{2,50})`)
)

func init() {
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// SanitizedContent is the result of rendering raw comment markdown into safe
// HTML, plus the signals the moderation decision consumes.
type SanitizedContent struct {
	HTML          string
	ContainsLinks bool
	LinkCount     int
	Mentions      []string
}

// Sanitize renders markdown and strips any markup outside the UGC policy.
// It never fails: unparseable input falls back to the escaped source.
func Sanitize(raw string) SanitizedContent {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(raw), &buf); err != nil {
		buf.Reset()
		buf.WriteString(raw)
	}
	sanitized := policy.SanitizeBytes(buf.Bytes())

	links := linkPattern.FindAllString(raw, -1)

	return SanitizedContent{
		HTML:          string(sanitized),
		ContainsLinks: len(links) > 0,
		LinkCount:     len(links),
		Mentions:      ExtractMentions(raw),
	}
}

// ExtractMentions returns the distinct @usernames referenced in text, in
// first-occurrence order, lowercased.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var mentions []string
	for _, m := range matches {
		name := strings.ToLower(m[2])
		if !seen[name] {
			seen[name] = true
			mentions = append(mentions, name)
		}
	}
	return mentions
}
