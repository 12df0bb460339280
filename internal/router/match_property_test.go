//go:build property

package router

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMatchPathProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2024)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	segment := gen.Identifier()
	segments := gen.SliceOfN(4, segment)

	properties.Property("a path matches itself", prop.ForAll(
		func(segs []string) bool {
			p := "/" + strings.Join(segs, "/")
			_, ok := MatchPath(p, p)
			return ok
		},
		segments,
	))

	properties.Property("slashes are insignificant", prop.ForAll(
		func(segs []string) bool {
			pattern := strings.Join(segs, "/")
			path := "//" + strings.Join(segs, "//") + "/"
			_, ok := MatchPath(pattern, path)
			return ok
		},
		segments,
	))

	properties.Property("named captures round trip", prop.ForAll(
		func(prefix, value string) bool {
			params, ok := MatchPath("/"+prefix+"/:id", "/"+prefix+"/"+value)
			return ok && params["id"] == value
		},
		segment,
		segment,
	))

	properties.Property("trailing wildcard accepts any suffix", prop.ForAll(
		func(prefix string, rest []string) bool {
			_, ok := MatchPath("/"+prefix+"/*", "/"+prefix+"/"+strings.Join(rest, "/"))
			return ok
		},
		segment,
		gen.SliceOf(segment),
	))

	properties.TestingRun(t)
}
