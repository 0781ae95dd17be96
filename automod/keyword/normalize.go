package keyword

import "unicode"

// Homoglyph and leetspeak folding. Spammers dodge keyword matching by swapping
// visually-similar characters ("fr33 f0ll0w3rs"), so the detector matches patterns
// against both the raw text and the folded form.
//
// Each entry maps a canonical Latin letter to the characters that commonly stand in
// for it: digits, punctuation, Cyrillic/Greek lookalikes, and accented variants. The
// table is ordered and free of duplicate stand-ins, so folding is deterministic. A
// plain ASCII letter is never itself a stand-in for another letter.
var foldTable = []struct {
	canon rune
	alts  string
}{
	{'a', "@4αаąäàáâãåāă"},
	{'b', "8ьвßḃ"},
	{'c', "(сçćč¢©"},
	{'d', "ԁďđ"},
	{'e', "3єеęëèéêēĕė"},
	{'f', "ƒ"},
	{'g', "9ğģġ"},
	{'h', "һħ"},
	{'i', "1!іїìíîïīĭ¡"},
	{'j', "ј"},
	{'k', "κķ"},
	{'l', "|łļ"},
	{'m', "мṁ"},
	{'n', "пñńņň"},
	{'o', "0оøöòóôõōŏő"},
	{'p', "рρ"},
	{'q', "ԛ"},
	{'r', "гŕř"},
	{'s', "$5ѕśşš§"},
	{'t', "7+тţť†"},
	{'u', "υüùúûūŭů"},
	{'v', "νѵ"},
	{'w', "ωẃẁŵ"},
	{'x', "х×"},
	{'y', "уýÿŷ"},
	{'z', "żźž"},
}

var foldMap map[rune]rune

func init() {
	foldMap = make(map[rune]rune, 256)
	for _, row := range foldTable {
		for _, alt := range row.alts {
			foldMap[alt] = row.canon
			// cased lookalikes (Cyrillic, accented latin) keep their case when folded
			if upperAlt := unicode.ToUpper(alt); upperAlt != alt {
				foldMap[upperAlt] = unicode.ToUpper(row.canon)
			}
		}
	}
}

// Normalize replaces every homoglyph/leetspeak character with its canonical Latin
// letter, leaving all other characters (including case) untouched. Pure function,
// single pass over the input.
func Normalize(text string) string {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if canon, ok := foldMap[r]; ok {
			out = append(out, canon)
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
