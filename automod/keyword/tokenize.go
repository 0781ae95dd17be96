package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// TokenizeText splits free-form chat text into lower-case word tokens, with unicode
// normalization and combining-mark removal, so that zalgo-decorated or accented
// variants of a word compare equal. Used for the similarity check against recent spam.
func TokenizeText(text string) []string {
	// the transform chain is stateful and must not be shared between goroutines
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		folded = bare
	}
	return strings.Fields(folded)
}

// WordSet returns the distinct tokens of a message, for Jaccard set comparison.
func WordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range TokenizeText(text) {
		set[tok] = true
	}
	return set
}
