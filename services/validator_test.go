package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDraftJSON = `{
  "title": "The Physics of Tides",
  "content": "<h2>Introduction</h2><p>The Moon pulls the oceans (Newton, 1687).</p>",
  "summary": "Tides are caused by gravity.",
  "citations": [
    {"source": "Philosophiae Naturalis Principia Mathematica", "author": "Newton, I.", "year": 1687},
    {"source": "Tidal Dynamics", "year": "2020", "url": "https://example.org/tides", "quote": "Water moves."}
  ],
  "model_notes": "ignored"
}`

func TestParseDraft_Valid(t *testing.T) {
	draft, err := ParseDraft(validDraftJSON)
	require.NoError(t, err)

	assert.Equal(t, "The Physics of Tides", draft.Title)
	assert.Equal(t, "Tides are caused by gravity.", draft.Summary)
	assert.Contains(t, draft.Content, "<h2>Introduction</h2>")
	require.Len(t, draft.Citations, 2)

	assert.Equal(t, "Newton, I.", draft.Citations[0].Author)
	require.NotNil(t, draft.Citations[0].Year)
	assert.Equal(t, 1687, *draft.Citations[0].Year)

	require.NotNil(t, draft.Citations[1].Year)
	assert.Equal(t, 2020, *draft.Citations[1].Year)
	assert.Equal(t, "https://example.org/tides", draft.Citations[1].URL)
	assert.Equal(t, "Water moves.", draft.Citations[1].Quote)
}

func TestParseDraft_CodeFence(t *testing.T) {
	draft, err := ParseDraft("```json\n" + validDraftJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "The Physics of Tides", draft.Title)
}

func TestParseDraft_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantField string
	}{
		{"empty", "   ", ""},
		{"not json", "Sure! Here is your article.", ""},
		{"array", `[{"title":"x"}]`, ""},
		{"missing summary", `{"title":"T","content":"<p>c</p>","citations":[]}`, "summary"},
		{"blank title", `{"title":"  ","content":"<p>c</p>","summary":"s"}`, "title"},
		{"title not string", `{"title":7,"content":"<p>c</p>","summary":"s"}`, "title"},
		{"content only script", `{"title":"T","content":"<script>alert(1)</script>","summary":"s"}`, "content"},
		{"citations not list", `{"title":"T","content":"<p>c</p>","summary":"s","citations":{"source":"A"}}`, "citations"},
		{"citation not object", `{"title":"T","content":"<p>c</p>","summary":"s","citations":["A"]}`, "citations[0]"},
		{"citation missing source", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"author":"B"}]}`, "citations[0].source"},
		{"fractional year", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":2020.5}]}`, "citations[0].year"},
		{"year object", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":{}}]}`, "citations[0].year"},
		{"citations null", `{"title":"T","content":"<p>c</p>","summary":"s","citations":null}`, "citations"},
		{"year overflows", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":1e30}]}`, "citations[0].year"},
		{"year beyond float range", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":1e400}]}`, "citations[0].year"},
		{"negative year", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":-44}]}`, "citations[0].year"},
		{"five digit year", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":10000}]}`, "citations[0].year"},
		{"year string overflows", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":"99999999999999999999"}]}`, "citations[0].year"},
		{"trailing text", `{"title":"T","content":"<p>c</p>","summary":"s"} this is not json`, ""},
		{"second object", `{"title":"T","content":"<p>c</p>","summary":"s"}{"title":"U"}`, ""},
		{"url not string", `{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","url":1}]}`, "citations[0].url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDraft(tt.raw)
			var schemaErr *SchemaValidationError
			require.True(t, errors.As(err, &schemaErr), "got %v", err)
			assert.Equal(t, tt.wantField, schemaErr.Field)
		})
	}
}

func TestValidateDraft_EmptyAndMissingCitations(t *testing.T) {
	for _, raw := range []string{
		`{"title":"T","content":"<p>c</p>","summary":"s","citations":[]}`,
		`{"title":"T","content":"<p>c</p>","summary":"s"}`,
	} {
		draft, err := ParseDraft(raw)
		require.NoError(t, err)
		assert.NotNil(t, draft.Citations)
		assert.Empty(t, draft.Citations)
	}
}

func TestValidateDraft_PlainDecodedInput(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":1999,"author":["Ada Lovelace","Charles Babbage"]}]}`), &raw))

	draft, err := ValidateDraft(raw)
	require.NoError(t, err)
	require.Len(t, draft.Citations, 1)
	require.NotNil(t, draft.Citations[0].Year)
	assert.Equal(t, 1999, *draft.Citations[0].Year)
	assert.Equal(t, "Ada Lovelace, Charles Babbage", draft.Citations[0].Author)
}

func TestValidateDraft_NonNumericYearIsDropped(t *testing.T) {
	draft, err := ParseDraft(`{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":"n.d."}]}`)
	require.NoError(t, err)
	assert.Nil(t, draft.Citations[0].Year)
}

func TestValidateDraft_YearBounds(t *testing.T) {
	for raw, want := range map[string]int{`0`: 0, `9999`: 9999, `1.687e3`: 1687, `" 2020 "`: 2020} {
		draft, err := ParseDraft(`{"title":"T","content":"<p>c</p>","summary":"s","citations":[{"source":"A","year":` + raw + `}]}`)
		require.NoError(t, err, raw)
		require.NotNil(t, draft.Citations[0].Year, raw)
		assert.Equal(t, want, *draft.Citations[0].Year, raw)
	}
}

func TestParseDraft_TrailingWhitespace(t *testing.T) {
	_, err := ParseDraft(validDraftJSON + "\n\n  ")
	assert.NoError(t, err)
}

func TestValidateDraft_SanitizesContent(t *testing.T) {
	draft, err := ParseDraft(`{"title":"<b>Tides</b>","content":"<p onclick=\"x()\">Moon</p><script>alert(1)</script><img src=x>","summary":"<em>s</em>"}`)
	require.NoError(t, err)

	assert.Equal(t, "Tides", draft.Title)
	assert.Equal(t, "s", draft.Summary)
	assert.Equal(t, "<p>Moon</p>", draft.Content)
}

func TestValidateDraft_NonObject(t *testing.T) {
	for _, raw := range []any{nil, "text", 12.0, []any{}} {
		_, err := ValidateDraft(raw)
		var schemaErr *SchemaValidationError
		assert.True(t, errors.As(err, &schemaErr))
	}
}
