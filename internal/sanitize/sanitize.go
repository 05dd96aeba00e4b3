// Package sanitize reduces message text to the 7-bit ASCII subset the modem
// sends in GSM text mode.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spanishReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U",
	"ñ", "n", "Ñ", "N",
	"ü", "u", "Ü", "U",
	"¿", "?", "¡", "!",
	"ç", "c", "Ç", "C",
	"à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u",
	"À", "A", "È", "E", "Ì", "I", "Ò", "O", "Ù", "U",
	"‘", "'", "’", "'", "“", "\"", "”", "\"",
	"–", "-", "—", "-", "…", "...",
)

// Clean maps text to ASCII: explicit Spanish table first, then NFD
// decomposition with combining marks removed, then any rune >= 128 dropped.
func Clean(text string) string {
	if text == "" {
		return text
	}

	replaced := spanishReplacer.Replace(text)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(isNonASCII)))
	cleaned, _, err := transform.String(t, replaced)
	if err != nil {
		return stripNonASCII(replaced)
	}
	return cleaned
}

// IsASCII reports whether every rune of s is below 128.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// AlphanumericOnly keeps ASCII letters, digits and whitespace, collapsing runs
// of whitespace to single spaces.
func AlphanumericOnly(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isNonASCII(r rune) bool {
	return r >= 0x80
}

func stripNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isNonASCII(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
