package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dctmfoo/AIResearchScribe/models"
)

// Bibliography is the formatted reference list of one article.
type Bibliography struct {
	References []string `json:"references"`
	Warnings   []string `json:"warnings"`
}

// BuildBibliography formats the citations alphabetically by author (APA order)
// and warns about citations the article text never mentions.
func BuildBibliography(content string, citations []models.Citation) Bibliography {
	b := Bibliography{References: []string{}, Warnings: []string{}}
	if len(citations) == 0 {
		return b
	}

	sorted := make([]models.Citation, len(citations))
	copy(sorted, citations)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := sortKey(sorted[i]), sortKey(sorted[j])
		if ki != kj {
			return ki < kj
		}
		return yearOf(sorted[i]) < yearOf(sorted[j])
	})

	text := strings.ToLower(draftSanitizer.StripTags(content))
	for _, c := range sorted {
		b.References = append(b.References, FormatReference(c))
		if key := citeKey(c); key != "" && !strings.Contains(text, strings.ToLower(key)) {
			b.Warnings = append(b.Warnings, fmt.Sprintf("%q is not referenced in the text", c.Source))
		}
	}
	return b
}

// FormatReference renders a citation into an APA-style reference string.
func FormatReference(c models.Citation) string {
	authors := strings.TrimSpace(c.Author)
	if authors == "" {
		authors = "Unknown Author"
	}
	year := "n.d."
	if c.Year != nil && *c.Year > 0 {
		year = fmt.Sprintf("%d", *c.Year)
	}
	source := strings.TrimSpace(c.Source)
	if source == "" {
		source = "Untitled"
	}
	ref := fmt.Sprintf("%s (%s). %s.", authors, year, strings.TrimSuffix(source, "."))
	if c.URL != "" {
		ref += " " + c.URL
	}
	return ref
}

func sortKey(c models.Citation) string {
	if c.Author != "" {
		return strings.ToLower(c.Author)
	}
	return strings.ToLower(c.Source)
}

func yearOf(c models.Citation) int {
	if c.Year == nil {
		return 0
	}
	return *c.Year
}

// citeKey is the word an in-text citation would use: the first author's surname.
func citeKey(c models.Citation) string {
	author := strings.TrimSpace(c.Author)
	if author == "" {
		return ""
	}
	first, _, _ := strings.Cut(author, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	// "Smith, J." and "J. Smith, A. Doe" both cite as Smith
	return strings.Trim(fields[len(fields)-1], ".")
}
