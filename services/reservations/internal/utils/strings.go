package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]+$`)

// NormalizeString trims whitespace and normalizes string input
func NormalizeString(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail normalizes email addresses (lowercase and trim)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps a leading + and the digits.
func NormalizePhone(phone string) string {
	cleaned := strings.TrimSpace(phone)
	var result strings.Builder
	for i, r := range cleaned {
		if i == 0 && r == '+' {
			result.WriteRune(r)
		} else if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// IsValidEmail performs basic email validation
func IsValidEmail(email string) bool {
	normalized := NormalizeEmail(email)
	parts := strings.Split(normalized, "@")
	if len(parts) != 2 {
		return false
	}
	local, domain := parts[0], parts[1]
	return len(local) > 0 && len(domain) > 2 && strings.Contains(domain, ".") && !strings.ContainsAny(normalized, " \t")
}

// IsValidPhone accepts digits, spaces, +, - and parentheses, 10 to 20
// characters long as typed.
func IsValidPhone(phone string) bool {
	raw := strings.TrimSpace(phone)
	if len(raw) < 10 || len(raw) > 20 {
		return false
	}
	return phonePattern.MatchString(raw)
}

func OneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
