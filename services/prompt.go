package services

import (
	"fmt"
	"strings"
)

// ArticleLength selects the word-count target of a generated article.
type ArticleLength string

const (
	LengthShort  ArticleLength = "short"
	LengthMedium ArticleLength = "medium"
	LengthLong   ArticleLength = "long"
)

// MinTopicLength is the shortest topic (in characters, after trimming) worth generating for.
const MinTopicLength = 3

// AllowedTags is the HTML subset articles may use. The sanitizer enforces the same list.
var AllowedTags = []string{"h2", "h3", "p", "ul", "ol", "li", "strong", "em", "blockquote", "a"}

type wordRange struct {
	Min, Max int
}

var wordTargets = map[ArticleLength]wordRange{
	LengthShort:  {300, 500},
	LengthMedium: {800, 1200},
	LengthLong:   {1500, 2500},
}

// ParseArticleLength accepts short, medium or long; empty means medium.
func ParseArticleLength(s string) (ArticleLength, error) {
	l := ArticleLength(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return LengthMedium, nil
	}
	if _, ok := wordTargets[l]; !ok {
		return "", &InvalidInputError{Field: "length", Reason: "must be short, medium or long"}
	}
	return l, nil
}

// WordTarget returns the inclusive word range for the length, falling back to medium.
func WordTarget(length ArticleLength) (int, int) {
	r, ok := wordTargets[length]
	if !ok {
		r = wordTargets[LengthMedium]
	}
	return r.Min, r.Max
}

// BuildResearchPrompt renders the system prompt for the text model.
func BuildResearchPrompt(topic string, length ArticleLength) string {
	minWords, maxWords := WordTarget(length)

	var b strings.Builder
	b.WriteString("You are an academic research writer. Write a well-sourced, factual article on the topic below.\n\n")
	fmt.Fprintf(&b, "Topic: %s\n\n", topic)

	b.WriteString("Formatting rules:\n")
	fmt.Fprintf(&b, "- The article body must be between %d and %d words.\n", minWords, maxWords)
	fmt.Fprintf(&b, "- Use only these HTML tags in the content: %s. No other markup, no inline styles, no scripts.\n",
		tagList(AllowedTags))
	b.WriteString("- Structure the body with <h2> section headings and <p> paragraphs; start with an introduction and end with a conclusion.\n")
	b.WriteString("- The summary is two or three plain-text sentences without HTML.\n\n")

	b.WriteString("Citation rules:\n")
	b.WriteString("- Support claims with real, verifiable sources and cite them in APA style, e.g. (Author, Year).\n")
	b.WriteString("- List every cited work in the citations array. Leave a field empty rather than inventing it.\n\n")

	b.WriteString("Respond with a single JSON object and nothing else, using exactly these fields:\n")
	b.WriteString(`{"title": string, "content": string (HTML), "summary": string, ` +
		`"citations": [{"source": string, "author": string, "year": number, "url": string, "quote": string}]}`)
	b.WriteString("\n")
	return b.String()
}

// BuildImagePrompt renders the prompt for the article's header illustration.
func BuildImagePrompt(title string) string {
	return fmt.Sprintf("An editorial illustration for an academic article titled %q. "+
		"Clean, modern, scientific style with a muted color palette. No text, letters or watermarks in the image.",
		strings.TrimSpace(title))
}

func tagList(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "<" + t + ">"
	}
	return strings.Join(parts, ", ")
}
