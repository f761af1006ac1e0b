package title

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Key is the canonical identity of a movie title: case-folded, with any
// trailing "(YYYY)" or "[YYYY]" year suffix stripped and whitespace collapsed.
// Two raw titles that normalize to the same Key are the same entity.
type Key string

var yearSuffix = regexp.MustCompile(`^(.*?)\s*[(\[](\d{4})[)\]]$`)

var folder = cases.Fold()

// Normalize derives the canonical key for a raw title string. It is pure and
// idempotent: Normalize(string(Normalize(x))) == Normalize(x). An empty result
// means the raw title carried no usable text.
func Normalize(raw string) Key {
	base, _ := SplitYear(raw)
	base = folder.String(base)
	return Key(strings.Join(strings.Fields(base), " "))
}

// SplitYear separates a trailing year suffix from a title, returning the base
// title and the four-digit year ("" when absent). "Inception (2010)" and
// "Titanic [1997]" both split; a bare title passes through unchanged.
func SplitYear(raw string) (base, year string) {
	trimmed := strings.TrimSpace(raw)
	if m := yearSuffix.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	return trimmed, ""
}

// Display renders a title with its year suffix when the year is known.
func Display(base, year string) string {
	base = strings.TrimSpace(base)
	if year == "" {
		return base
	}
	return base + " (" + year + ")"
}
