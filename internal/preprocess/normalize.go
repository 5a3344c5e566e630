package preprocess

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// typographic maps curly quotes, the acute accent and long dashes to their
// plain ASCII forms.
var typographic = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"´", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
)

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Normalize applies the character-level stages of the pipeline: case
// folding, ampersand expansion, typographic folding, acronym-period removal
// and punctuation stripping. The result is ready for tokenization.
func Normalize(text string) string {
	text = foldCase(text)
	text = expandAmpersands(text)
	text = foldTypographic(text)
	text = removeSpuriousPeriods(text)
	return stripPunctuation(text)
}

// foldCase uses the full Unicode lower-case mapping, so "İ" becomes "i̇"
// rather than a bare "i". A Caser keeps state, hence one per call.
func foldCase(text string) string {
	return cases.Lower(language.Und).String(text)
}

func expandAmpersands(text string) string {
	return strings.ReplaceAll(text, "&", " and ")
}

func foldTypographic(text string) string {
	return typographic.Replace(text)
}

// removeSpuriousPeriods deletes every '.' except those followed by a digit,
// or by a non-space character that is itself followed by something other
// than '.' or ' '. "u.s." loses both periods, "3.14" and "end.Next" keep
// theirs. The lookahead always inspects the original text.
func removeSpuriousPeriods(text string) string {
	if !strings.Contains(text, ".") {
		return text
	}
	rs := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range rs {
		if r == '.' && !keepPeriod(rs, i) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func keepPeriod(rs []rune, i int) bool {
	if i+1 >= len(rs) {
		return false
	}
	next := rs[i+1]
	if unicode.IsDigit(next) {
		return true
	}
	if i+2 >= len(rs) || isSpace(next) {
		return false
	}
	after := rs[i+2]
	return after != '.' && after != ' '
}

// isSpace matches the whitespace class of the period heuristic, which also
// counts the ASCII information separators.
func isSpace(r rune) bool {
	if r >= 0x1c && r <= 0x1f {
		return true
	}
	return unicode.IsSpace(r)
}

// stripPunctuation replaces each ASCII punctuation character with a space so
// that neighbouring words never fuse.
func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && strings.ContainsRune(asciiPunctuation, r) {
			return ' '
		}
		return r
	}, text)
}
