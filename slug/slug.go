// Package slug folds document titles into filesystem- and URL-safe
// names for ZIP downloads and upload prefixes.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Make folds s to a lowercase ASCII slug. Diacritics are stripped via
// NFD decomposition ("Frýdek-Místek 09/2025" becomes
// "frydek-mistek-09-2025"); runs of any other characters collapse to a
// single dash.
func Make(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	pendingDash := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition
			continue
		case r >= 'A' && r <= 'Z':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r - 'A' + 'a')
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	out := b.String()
	if out == "" {
		return "dokument"
	}
	return out
}
