package identity

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonMatchRegex   = regexp.MustCompile(`[^a-zA-Z0-9,;:]`)
)

// NormalizeString prepares free text for matching: ASCII only, roman
// numerals turned into arabic ones, lowercase, single spaces.
//
//	NormalizeString("tétéà 14ème-XIV,  foobar") == "tetea 14eme 14, foobar"
func NormalizeString(s string) string {
	return normalize(s, true)
}

// NormalizeStringKeepNumerals is NormalizeString without the roman numeral conversion
func NormalizeStringKeepNumerals(s string) string {
	return normalize(s, false)
}

func normalize(s string, convertRoman bool) string {
	s = unidecode.Unidecode(s)
	if convertRoman {
		s = ConvertRomanInText(s)
	}
	s = nonMatchRegex.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
