// Package transcript post-processes raw recognition output before analysis.
package transcript

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// consentMarkers are the lead-in phrases of the standard recorded-line
// notice played before the operator picks up. Everything through the last
// occurrence is boilerplate, not conversation.
var consentMarkers = []string{
	"разговоры записываются",
	"целях контроля качества",
}

// minRemainderRunes guards against cutting the whole transcript when the
// notice is the only thing that was recognized.
const minRemainderRunes = 5

// StripBoilerplate removes the recorded-line notice from the head of a
// transcript. The search is case-insensitive over the NFC-normalized text
// and keeps the cut only when a non-trivial remainder survives. Best effort;
// the input is returned unchanged when no marker matches.
func StripBoilerplate(text string) string {
	normalized := norm.NFC.String(text)
	lowered := strings.ToLower(normalized)

	for _, marker := range consentMarkers {
		idx := strings.LastIndex(lowered, marker)
		if idx < 0 {
			continue
		}
		// Lowercasing maps rune for rune but can change byte lengths, so
		// the byte index into lowered is translated to a rune offset before
		// cutting the original.
		cut := utf8.RuneCountInString(lowered[:idx]) + utf8.RuneCountInString(marker)
		remainder := strings.TrimSpace(skipRunes(normalized, cut))
		if utf8.RuneCountInString(remainder) > minRemainderRunes {
			return remainder
		}
	}
	return normalized
}

// skipRunes returns s with the first n runes removed.
func skipRunes(s string, n int) string {
	offset := 0
	for ; n > 0 && offset < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return s[offset:]
}
