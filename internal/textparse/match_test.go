package textparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetweenConnected(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		start   string
		end     string
		want    Match
		wantHit bool
	}{
		{
			name:    "empty region",
			text:    "{**}",
			start:   "{*",
			end:     "*}",
			want:    Match{From: 0, To: 3, Content: ""},
			wantHit: true,
		},
		{
			name:    "multi-byte neighbours",
			text:    "é{*ü{*ß*}*}ø",
			start:   "{*",
			end:     "*}",
			want:    Match{From: 2, To: 13, Content: "ü{*ß*}"},
			wantHit: true,
		},
		{
			name:    "multi-byte markers",
			text:    "a«x»b",
			start:   "«",
			end:     "»",
			want:    Match{From: 1, To: 5, Content: "x"},
			wantHit: true,
		},
		{
			name:    "nested region",
			text:    "content {* with a pattern and {* another pattern *}  *}",
			start:   "{*",
			end:     "*}",
			want:    Match{From: 8, To: 54, Content: " with a pattern and {* another pattern *}  "},
			wantHit: true,
		},
		{
			name:    "leading closer ignored",
			text:    "content *} with a pattern and {* another pattern {* *}  *}",
			start:   "{*",
			end:     "*}",
			want:    Match{From: 30, To: 57, Content: " another pattern {* *}  "},
			wantHit: true,
		},
		{
			name:    "single region",
			text:    "<p>{* title *}</p>",
			start:   "{*",
			end:     "*}",
			want:    Match{From: 3, To: 13, Content: " title "},
			wantHit: true,
		},
		{
			name:    "first of two siblings",
			text:    "{* a *}{* b *}",
			start:   "{*",
			end:     "*}",
			want:    Match{From: 0, To: 6, Content: " a "},
			wantHit: true,
		},
		{
			name:    "single character markers",
			text:    "for x in xs { <li>{x}</li> }",
			start:   "{",
			end:     "}",
			want:    Match{From: 12, To: 27, Content: " <li>{x}</li> "},
			wantHit: true,
		},
		{
			name:    "nested braces kept verbatim",
			text:    "a { b { c } d } e",
			start:   "{",
			end:     "}",
			want:    Match{From: 2, To: 14, Content: " b { c } d "},
			wantHit: true,
		},
		{
			name:    "equal markers take the first pair",
			text:    "a|b|c|d",
			start:   "|",
			end:     "|",
			want:    Match{From: 1, To: 3, Content: "b"},
			wantHit: true,
		},
		{
			name:    "multi byte content",
			text:    "héllo {* wörld *}",
			start:   "{*",
			end:     "*}",
			want:    Match{From: 7, To: 18, Content: " wörld "},
			wantHit: true,
		},
		{name: "unclosed", text: "{* never closed", start: "{*", end: "*}"},
		{name: "unbalanced nesting", text: "{* {* *}", start: "{*", end: "*}"},
		{name: "no markers", text: "plain text", start: "{*", end: "*}"},
		{name: "empty text", text: "", start: "{*", end: "*}"},
		{name: "empty marker", text: "{* x *}", start: "", end: "*}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BetweenConnected(tt.text, tt.start, tt.end)
			require.Equal(t, tt.wantHit, ok)
			if !tt.wantHit {
				return
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.start, tt.text[got.From:got.From+len(tt.start)])
			assert.Equal(t, tt.end, tt.text[got.To+1-len(tt.end):got.To+1])
		})
	}
}

func TestFindBetween(t *testing.T) {
	m, ok := FindBetween("x {* a {* b *} c *}", "{*", "*}")
	require.True(t, ok)
	assert.Equal(t, " a {* b ", m.Content)
	assert.Equal(t, 2, m.From)
	assert.Equal(t, 13, m.To)

	_, ok = FindBetween("x {* a", "{*", "*}")
	assert.False(t, ok)
}

func TestFindAll(t *testing.T) {
	text := "{* a *} text {* b {* c *} *} tail"
	matches := FindAll(text, "{*", "*}")
	require.Len(t, matches, 2)
	assert.Equal(t, " a ", matches[0].Content)
	assert.Equal(t, " b {* c *} ", matches[1].Content)
	assert.Equal(t, "{* b {* c *} *}", text[matches[1].From:matches[1].To+1])

	assert.Empty(t, FindAll("nothing here", "{*", "*}"))
}

func TestReplace(t *testing.T) {
	text := "<h1>{* title *}</h1>"
	m, ok := BetweenConnected(text, "{*", "*}")
	require.True(t, ok)
	assert.Equal(t, "<h1>Home</h1>", Replace(text, m, "Home"))
	assert.Equal(t, 11, m.Len())
}
