// Package validate holds the pure input predicates used by the
// authentication engine: email shape, password strength, and mobile
// number format. No predicate has side effects or dependencies.
package validate

import (
	"regexp"
	"strings"
)

var (
	emailRe  = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	mobileRe = regexp.MustCompile(`^[0-9]{10}$`)
)

// Symbols the password policy accepts and requires one of.
const passwordSymbols = "@$!%*#?&"

// Email reports whether s has the standard user@domain.tld shape.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// MobileNumber reports whether s is exactly 10 ASCII digits.
func MobileNumber(s string) bool {
	return mobileRe.MatchString(s)
}

// PasswordStrength reports whether s is 6-20 characters drawn from
// letters, digits, and the accepted symbol set, with at least one
// lowercase letter, one uppercase letter, one digit, and one symbol.
func PasswordStrength(s string) bool {
	if len(s) < 6 || len(s) > 20 {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		default:
			return false
		}
	}

	return lower && upper && digit && symbol
}
