package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes accented letters and drops the combining marks, so
// "Matemáticas" becomes "Matematicas".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SecureFileName reduces a client-supplied filename to a safe single path
// segment: accents are folded to ASCII, path separators and whitespace
// become underscores, anything outside [A-Za-z0-9._-] is dropped, and
// leading dots or underscores are trimmed. The result may be empty.
func SecureFileName(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)

	var b strings.Builder
	for _, field := range strings.Fields(folded) {
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		for _, r := range field {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				b.WriteRune(r)
			case r == '.' || r == '-' || r == '_':
				b.WriteRune(r)
			}
		}
	}
	return strings.Trim(b.String(), "._")
}
