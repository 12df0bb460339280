package router

// pair is one position of a zipLongest walk. A side that has run out is
// reported as absent.
type pair[T any] struct {
	left     T
	right    T
	hasLeft  bool
	hasRight bool
}

// zipLongest pairs a and b position by position until both are exhausted.
func zipLongest[T any](a, b []T) []pair[T] {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	out := make([]pair[T], n)
	for i := range out {
		if i < len(a) {
			out[i].left = a[i]
			out[i].hasLeft = true
		}
		if i < len(b) {
			out[i].right = b[i]
			out[i].hasRight = true
		}
	}

	return out
}
