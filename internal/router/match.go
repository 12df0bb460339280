package router

import "strings"

// Wildcard matches any one segment, or the rest of the path when it is the
// last segment of a pattern.
const Wildcard = "*"

// Segments splits a path on "/" and drops empty segments.
func Segments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// MatchPath reports whether path matches pattern and returns the values
// captured by ":name" segments. Leading, trailing and repeated slashes are
// ignored on both sides.
func MatchPath(pattern, path string) (map[string]string, bool) {
	patternSegs := Segments(pattern)
	pathSegs := Segments(path)
	last := len(patternSegs) - 1
	params := map[string]string{}

	for i, p := range zipLongest(patternSegs, pathSegs) {
		switch {
		case p.hasLeft && p.hasRight:
			switch {
			case p.left == Wildcard:
				if i == last {
					return params, true
				}
			case strings.HasPrefix(p.left, ":") && len(p.left) > 1:
				params[p.left[1:]] = p.right
			case p.left != p.right:
				return nil, false
			}

		case p.hasLeft:
			// Pattern is longer than the path: only a trailing wildcard may
			// stand in for nothing.
			if p.left == Wildcard && i == last {
				return params, true
			}
			return nil, false

		default:
			return nil, false
		}
	}

	return params, true
}
