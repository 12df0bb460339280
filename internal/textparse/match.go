// Package textparse locates delimited regions inside template text.
//
// Offsets are byte offsets into the searched string. They always fall on
// rune boundaries, so slicing with them never splits a multi-byte character.
package textparse

import (
	"strings"
	"unicode/utf8"
)

// Match is one delimited region. From is the offset of the first byte of the
// opening marker and To is the offset of the last byte of the closing marker,
// both inclusive. Content is the text strictly between the two markers.
type Match struct {
	From    int
	To      int
	Content string
}

// Len returns the number of bytes the region spans, markers included.
func (m Match) Len() int {
	return m.To - m.From + 1
}

// FindBetween returns the first region opened by start and closed by the
// next occurrence of end after it. Nesting is not considered.
func FindBetween(text, start, end string) (Match, bool) {
	if start == "" || end == "" {
		return Match{}, false
	}

	from := strings.Index(text, start)
	if from < 0 {
		return Match{}, false
	}

	contentStart := from + len(start)
	rel := strings.Index(text[contentStart:], end)
	if rel < 0 {
		return Match{}, false
	}

	contentEnd := contentStart + rel

	return Match{
		From:    from,
		To:      contentEnd + len(end) - 1,
		Content: text[contentStart:contentEnd],
	}, true
}

// BetweenConnected returns the first outermost region whose opening and
// closing markers balance. Opening markers nested inside the region must be
// closed before the region itself closes. A closing marker that appears
// before any opening marker is ignored. When start and end are equal the
// first pair is returned.
func BetweenConnected(text, start, end string) (Match, bool) {
	if start == "" || end == "" {
		return Match{}, false
	}
	if start == end {
		return FindBetween(text, start, end)
	}

	depth := 0
	from := -1
	contentStart := 0

	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], start):
			if depth == 0 {
				from = i
				contentStart = i + len(start)
			}
			depth++
			i += len(start)

		case strings.HasPrefix(text[i:], end):
			if depth == 0 {
				i += len(end)
				continue
			}
			depth--
			if depth == 0 {
				return Match{
					From:    from,
					To:      i + len(end) - 1,
					Content: text[contentStart:i],
				}, true
			}
			i += len(end)

		default:
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
		}
	}

	return Match{}, false
}

// FindAll returns every top-level connected region in text, in order.
func FindAll(text, start, end string) []Match {
	var matches []Match

	offset := 0
	for offset < len(text) {
		m, ok := BetweenConnected(text[offset:], start, end)
		if !ok {
			break
		}
		m.From += offset
		m.To += offset
		matches = append(matches, m)
		offset = m.To + 1
	}

	return matches
}

// Replace returns text with the region m substituted by replacement.
func Replace(text string, m Match, replacement string) string {
	var b strings.Builder
	b.Grow(len(text) - m.Len() + len(replacement))
	b.WriteString(text[:m.From])
	b.WriteString(replacement)
	b.WriteString(text[m.To+1:])

	return b.String()
}
