package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DraftCitation is one validated reference from the provider reply.
type DraftCitation struct {
	Source string `json:"source"`
	Author string `json:"author,omitempty"`
	Year   *int   `json:"year,omitempty"`
	URL    string `json:"url,omitempty"`
	Quote  string `json:"quote,omitempty"`
}

// ArticleDraft is a provider reply that passed validation. Content is already sanitized.
type ArticleDraft struct {
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Summary   string          `json:"summary"`
	Citations []DraftCitation `json:"citations"`
}

var codeFenceRE = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*(.*?)\\s*```$")

var draftSanitizer = NewSanitizer()

// ParseDraft decodes the raw model output and validates it. A surrounding
// markdown code fence is tolerated.
func ParseDraft(raw string) (*ArticleDraft, error) {
	body := strings.TrimSpace(raw)
	if m := codeFenceRE.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	if body == "" {
		return nil, &SchemaValidationError{Reason: "empty response"}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &SchemaValidationError{Reason: fmt.Sprintf("not valid JSON (%v)", err)}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &SchemaValidationError{Reason: "unexpected data after the JSON object"}
	}
	return ValidateDraft(v)
}

// ValidateDraft checks a decoded provider reply against the article schema.
// Unknown fields are dropped; Citations is never nil on success.
func ValidateDraft(raw any) (*ArticleDraft, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &SchemaValidationError{Reason: "expected a JSON object"}
	}

	title, err := requiredString(obj, "title")
	if err != nil {
		return nil, err
	}
	content, err := requiredString(obj, "content")
	if err != nil {
		return nil, err
	}
	summary, err := requiredString(obj, "summary")
	if err != nil {
		return nil, err
	}

	draft := &ArticleDraft{
		Title:   draftSanitizer.StripTags(title),
		Content: draftSanitizer.SanitizeHTML(content),
		Summary: draftSanitizer.StripTags(summary),
	}
	if draft.Title == "" {
		return nil, &SchemaValidationError{Field: "title", Reason: "has no text"}
	}
	if draftSanitizer.StripTags(draft.Content) == "" {
		return nil, &SchemaValidationError{Field: "content", Reason: "has no text after sanitizing"}
	}
	if draft.Summary == "" {
		return nil, &SchemaValidationError{Field: "summary", Reason: "has no text"}
	}

	draft.Citations, err = validateCitations(obj)
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// validateCitations treats a missing key as no citations; an explicit null is rejected.
func validateCitations(obj map[string]any) ([]DraftCitation, error) {
	v, present := obj["citations"]
	if !present {
		return []DraftCitation{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &SchemaValidationError{Field: "citations", Reason: "must be a list"}
	}

	out := make([]DraftCitation, 0, len(list))
	for i, item := range list {
		field := fmt.Sprintf("citations[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &SchemaValidationError{Field: field, Reason: "must be an object"}
		}

		source, err := requiredString(m, "source")
		if err != nil {
			return nil, &SchemaValidationError{Field: field + ".source", Reason: "is required"}
		}
		c := DraftCitation{Source: source}

		if c.Author, err = authorField(m["author"]); err != nil {
			return nil, &SchemaValidationError{Field: field + ".author", Reason: err.Error()}
		}
		if c.Year, err = yearField(m["year"]); err != nil {
			return nil, &SchemaValidationError{Field: field + ".year", Reason: err.Error()}
		}
		if c.URL, err = optionalString(m["url"]); err != nil {
			return nil, &SchemaValidationError{Field: field + ".url", Reason: err.Error()}
		}
		if c.Quote, err = optionalString(m["quote"]); err != nil {
			return nil, &SchemaValidationError{Field: field + ".quote", Reason: err.Error()}
		}
		out = append(out, c)
	}
	return out, nil
}

func requiredString(obj map[string]any, key string) (string, error) {
	v, present := obj[key]
	if !present || v == nil {
		return "", &SchemaValidationError{Field: key, Reason: "is missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &SchemaValidationError{Field: key, Reason: "must be a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &SchemaValidationError{Field: key, Reason: "is empty"}
	}
	return s, nil
}

func optionalString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	default:
		return "", fmt.Errorf("must be a string")
	}
}

// authorField accepts "A. Author" as well as ["A. Author", "B. Author"].
func authorField(v any) (string, error) {
	list, ok := v.([]any)
	if !ok {
		return optionalString(v)
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return "", fmt.Errorf("must be a string or a list of strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	return strings.Join(names, ", "), nil
}

const maxYear = 9999

// yearField accepts numbers and numeric strings within [0, 9999]. Non-numeric
// strings such as "n.d." leave the year unset.
func yearField(v any) (*int, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		n, err := t.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("must be a whole number")
		}
		f = n
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("must be between 0 and %d", maxYear)
		}
		if err != nil {
			return nil, nil
		}
		f = float64(n)
	default:
		return nil, fmt.Errorf("must be a number")
	}
	if math.IsInf(f, 0) || f < 0 || f > maxYear {
		return nil, fmt.Errorf("must be between 0 and %d", maxYear)
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("must be a whole number")
	}
	year := int(f)
	return &year, nil
}
