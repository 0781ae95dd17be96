package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamguard/streamguard/automod/keyword"
)

func TestLibraryCompiles(t *testing.T) {
	lib := NewLibrary()
	assert.Len(t, lib.patterns, len(patternDefs))
}

func TestMatchRawText(t *testing.T) {
	assert := assert.New(t)
	lib := NewLibrary()

	fixtures := []struct {
		s    string
		name string
	}{
		{"buy followers cheap today", "followbot_spam"},
		{"DOUBLE YOUR BTC NOW", "crypto_double_scam"},
		{"your account will be suspended", "phishing_suspension"},
		{"twitch staff here, verify now", "platform_impersonation"},
		{"hot single girls near your area", "dating_spam"},
	}

	for _, fix := range fixtures {
		matches := lib.Match(fix.s, keyword.Normalize(fix.s))
		found := false
		for _, m := range matches {
			if m.Name == fix.name {
				found = true
			}
		}
		assert.True(found, "expected %s for %q, got %v", fix.name, fix.s, matches)
	}
}

func TestMatchObfuscatedTagged(t *testing.T) {
	assert := assert.New(t)
	lib := NewLibrary()

	// "fr33 v13wb0t" folds to "free viewbot"; the regex only fires on the fold
	raw := "g3t ur fr33 v13wb0t"
	matches := lib.Match(raw, keyword.Normalize(raw))

	var names []string
	for _, m := range matches {
		names = append(names, m.Name)
	}
	assert.Contains(names, "bot_spam_obfuscated")
}

func TestMatchCollectsAll(t *testing.T) {
	assert := assert.New(t)
	lib := NewLibrary()

	s := "buy followers and free bitcoin"
	matches := lib.Match(s, keyword.Normalize(s))
	// regex hit plus several exact-term hits; never short-circuits after the first
	assert.GreaterOrEqual(len(matches), 2)
}

func TestMatchClean(t *testing.T) {
	assert := assert.New(t)
	lib := NewLibrary()

	s := "good game everyone, that clutch was wild"
	assert.Empty(lib.Match(s, keyword.Normalize(s)))
}

func TestTermMatchOnNormalizedOnly(t *testing.T) {
	assert := assert.New(t)
	lib := NewLibrary()

	// "che4p f0ll0wers" folds to "cheap followers": term fires only on the fold
	raw := "che4p f0ll0wers here"
	matches := lib.Match(raw, keyword.Normalize(raw))

	found := false
	for _, m := range matches {
		if strings.HasPrefix(m.Name, "term:cheap followers") && strings.HasSuffix(m.Name, "_obfuscated") {
			found = true
		}
	}
	assert.True(found, "got %v", matches)
}
