package services

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxSpeechInput is the longest text the speech provider accepts.
const MaxSpeechInput = 4096

var (
	blockEndRE   = regexp.MustCompile(`(?i)(</(p|h[1-6]|li|blockquote|ul|ol|div)>|<br\s*/?>)`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Sanitizer restricts generated HTML to the article tag subset and turns it into plain text for speech.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer creates a Sanitizer allowing AllowedTags and http(s) links.
func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &Sanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// SanitizeHTML drops every tag and attribute outside the allow-list and trims the result.
func (s *Sanitizer) SanitizeHTML(content string) string {
	return strings.TrimSpace(s.policy.Sanitize(content))
}

// StripTags returns the readable text of content: no markup, entities decoded, whitespace collapsed.
func (s *Sanitizer) StripTags(content string) string {
	// keep words of adjacent blocks apart
	spaced := blockEndRE.ReplaceAllString(content, "$1 ")
	text := html.UnescapeString(s.strict.Sanitize(spaced))
	return collapseWhitespace(text)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// truncateText cuts s to at most limit runes, preferring the last word boundary.
func truncateText(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)[:limit]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
