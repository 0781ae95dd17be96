package keyword

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// Slugify strips all non-letter, non-digit characters and lower-cases the rest.
// Useful for comparing usernames and channel names that arrive with decoration
// ("@SomeUser," -> "someuser").
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}
