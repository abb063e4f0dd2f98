// Package handle canonicalizes user-entered account strings. Users paste
// anything into the label list: bare names, @-prefixed names, full profile
// URLs, or a lone "@" meaning "leave this label empty".
package handle

import (
	"regexp"
	"strings"

	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
)

var urlRe = regexp.MustCompile(`^https?://[^/]+/([^/?#]+)`)

// Blank is the sentinel for an intentionally empty label slot.
const Blank = cnst.BlankHandle

// IsBlank reports whether h is the blank-slot sentinel.
func IsBlank(h string) bool {
	return h == Blank
}

// Normalize canonicalizes a raw account string. The second return value is
// false when the entry is all whitespace and should be omitted from the
// batch. The lone "@" sentinel is returned unchanged so blank slots keep
// their position in the list. Normalize is pure and idempotent.
func Normalize(raw string) (string, bool) {
	a := strings.TrimSpace(raw)
	if a == Blank {
		return Blank, true
	}
	a = strings.TrimPrefix(a, "@")
	if m := urlRe.FindStringSubmatch(a); m != nil {
		a = m[1]
	}
	a = strings.TrimSpace(a)
	if a == "" {
		return "", false
	}
	return a, true
}

// NormalizeList normalizes every entry, dropping the ones that normalize to
// "omit" and keeping blank sentinels in place.
func NormalizeList(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		h, ok := Normalize(r)
		if !ok {
			continue
		}
		out = append(out, h)
	}
	return out
}
