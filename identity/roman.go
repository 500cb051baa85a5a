package identity

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	romanRegex       = regexp.MustCompile(`^M{0,4}(CM|CD|D?C{0,3})(XC|XL|L?X{0,3})(IX|IV|V?I{0,3})$`)
	romanInTextRegex = regexp.MustCompile(`\b([MDCLXVI]+)(eme|er|e)?\b`)
	romanValues      = map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}
)

// IsRoman reports whether s is a well formed upper-case roman numeral
func IsRoman(s string) bool {
	return s != "" && romanRegex.MatchString(s)
}

// RomanToArabic converts a valid roman numeral; ok is false otherwise
func RomanToArabic(s string) (int, bool) {
	if !IsRoman(s) {
		return 0, false
	}
	total := 0
	for i := 0; i < len(s); i++ {
		v := romanValues[s[i]]
		if i+1 < len(s) && v < romanValues[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	return total, true
}

// ConvertRomanInText replaces roman numerals standing as words, optionally
// followed by an ordinal suffix ("XVe", "XXeme"), with arabic numbers.
// A lone letter is only converted when it is I, V or X carrying a suffix,
// so title-cased words such as "Le", "De" or "Mer" stay untouched.
func ConvertRomanInText(s string) string {
	return romanInTextRegex.ReplaceAllStringFunc(s, func(word string) string {
		m := romanInTextRegex.FindStringSubmatch(word)
		numeral, suffix := m[1], m[2]
		if len(numeral) == 1 && (suffix == "" || !strings.ContainsAny(numeral, "IVX")) {
			return word
		}
		n, ok := RomanToArabic(numeral)
		if !ok {
			return word
		}
		return strconv.Itoa(n) + suffix
	})
}
