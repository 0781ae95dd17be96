package detector

import (
	"regexp"
	"strings"
	"unicode"
)

// Text-shape heuristics. Each returns (triggered, magnitude) and is gated by its
// FilterConfig toggle in Analyze; the functions themselves are pure.

var commonEmotes = map[string]bool{
	"Kappa": true, "PogChamp": true, "LUL": true, "KEKW": true, "OMEGALUL": true,
	"Pepega": true, "monkaS": true, "monkaW": true, "POGGERS": true, "PepeHands": true,
	"FeelsBadMan": true, "FeelsGoodMan": true, "4Head": true, "ResidentSleeper": true,
	"BibleThump": true, "Kreygasm": true, "PJSalt": true, "NotLikeThis": true,
	"TriHard": true, "CoolStoryBob": true, "DansGame": true, "WutFace": true,
	"Jebaited": true, "cmonBruh": true, "haHAA": true, "LULW": true, "PepeLaugh": true,
	"Sadge": true, "widepeepoHappy": true, "peepoSad": true,
}

// token shapes that third-party emotes follow: CamelCase, SHOUTING, :emote:, monkaS2
var emoteShapeRegex = regexp.MustCompile(`^(?:[A-Z][a-z]+[A-Z][a-zA-Z]*|[A-Z]{2,}[a-z]*|:[a-zA-Z0-9_]+:|[a-zA-Z]+[0-9]+[a-zA-Z]*)`)

// CountEmotes counts tokens that are known emotes or look like one.
func CountEmotes(message string) int {
	count := 0
	for _, word := range strings.Fields(message) {
		if commonEmotes[word] || emoteShapeRegex.MatchString(word) {
			count++
		}
	}
	return count
}

// CapsPercent returns the share of upper-case letters among all letters,
// or 0 when the message has no letters.
func CapsPercent(message string) float64 {
	var letters, upper int
	for _, r := range message {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters) * 100
}

// SymbolPercent returns the share of non-alphanumeric, non-space characters
// among all non-space characters. Messages shorter than 5 characters are exempt.
func SymbolPercent(message string) float64 {
	if len(message) < 5 {
		return 0
	}
	var symbols, total int
	for _, r := range message {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			symbols++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(symbols) / float64(total) * 100
}

// CountZalgo counts unicode combining marks (the characters stacked onto letters
// to produce zalgo text). More than 5 is treated as zalgo by the scorer.
func CountZalgo(message string) int {
	count := 0
	for _, r := range message {
		if (r >= 0x0300 && r <= 0x036f) || r == 0x0489 {
			count++
		}
	}
	return count
}

// HasASCIIArt reports a run of 6 or more identical non-word, non-space characters.
func HasASCIIArt(message string) bool {
	return longestRun(message, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && r != '_'
	}) >= 6
}

// HasRepeatedChars reports a run of 5 or more identical characters.
func HasRepeatedChars(message string) bool {
	return longestRun(message, func(r rune) bool { return true }) >= 5
}

func longestRun(s string, eligible func(rune) bool) int {
	var prev rune
	run, longest := 0, 0
	for _, r := range s {
		if r == prev && eligible(r) {
			run++
		} else {
			run = 1
		}
		if eligible(r) && run > longest {
			longest = run
		}
		prev = r
	}
	return longest
}

// MaxWordRepetition returns the highest occurrence count of any single word of
// 3+ characters. Messages of fewer than 3 words are exempt.
func MaxWordRepetition(message string) int {
	words := strings.Fields(strings.ToLower(message))
	if len(words) < 3 {
		return 0
	}
	counts := make(map[string]int)
	max := 0
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		counts[w]++
		if counts[w] > max {
			max = counts[w]
		}
	}
	return max
}
