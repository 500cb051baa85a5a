package identity

import "strings"

var phoneSeparators = strings.NewReplacer(".", "", " ", "", "-", "", "(", "", ")", "")

// HomogeneizePhoneNumber brings a phone number to the 10 digit national
// format ("+33605040302" and "06.05.04.03.02" both give "0605040302").
// Anything that does not reduce to exactly 10 digits is rejected.
func HomogeneizePhoneNumber(number string) (string, bool) {
	if number == "" {
		return "", false
	}

	number = phoneSeparators.Replace(number)

	// International prefix, e.g. +33
	if strings.HasPrefix(number, "+") {
		if len(number) < 3 {
			return "", false
		}
		number = number[3:]
	}

	if !strings.HasPrefix(number, "0") {
		number = "0" + number
	}

	if len(number) != 10 || !isNumericToken(number) {
		return "", false
	}
	return number, true
}

func isNumericToken(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
