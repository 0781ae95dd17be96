package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapsPercent(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(100.0, CapsPercent("HELLO"))
	assert.Equal(0.0, CapsPercent("hello"))
	assert.Equal(0.0, CapsPercent(""))
	assert.Equal(0.0, CapsPercent("12345 !!!"), "no letters means no caps")
	assert.InDelta(40.0, CapsPercent("HEllo theRE"), 0.01)
}

func TestSymbolPercent(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, SymbolPercent("hi!"), "short messages are exempt")
	assert.Equal(100.0, SymbolPercent("!!!###$$$"))
	assert.InDelta(0.0, SymbolPercent("plain words here"), 0.01)
}

func TestCountEmotes(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s string
		n int
	}{
		{"Kappa Kappa PogChamp", 3},
		{"KEKW LUL OMEGALUL", 3},
		{":custom_emote: normal words", 1},
		{"monkaS 4Head", 2},
		{"just regular lowercase chatter", 0},
	}
	for _, fix := range fixtures {
		assert.Equal(fix.n, CountEmotes(fix.s), "message %q", fix.s)
	}
}

func TestCountZalgo(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0, CountZalgo("clean text"))
	zalgo := "h\u0301\u0302\u0303e\u0304\u0305\u0306l\u0307lo"
	assert.Equal(7, CountZalgo(zalgo))
}

func TestRepeatedAndArtRuns(t *testing.T) {
	assert := assert.New(t)

	assert.True(HasRepeatedChars("looooool"))
	assert.True(HasRepeatedChars("!!!!!"))
	assert.False(HasRepeatedChars("normal text"))
	assert.False(HasRepeatedChars("looool"), "only four repeats after the first")

	assert.True(HasASCIIArt("======"))
	assert.True(HasASCIIArt("wall of ######### art"))
	assert.False(HasASCIIArt("=== short ==="))
	assert.False(HasASCIIArt("aaaaaaaa"), "letters are not ascii art")
}

func TestMaxWordRepetition(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0, MaxWordRepetition("too short"))
	assert.Equal(1, MaxWordRepetition("all distinct words here"))
	assert.Equal(4, MaxWordRepetition("spam spam spam spam other"))
	assert.Equal(1, MaxWordRepetition(strings.Repeat("as ", 10)+"end"), "short words ignored")
}
