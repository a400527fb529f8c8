package domain

import (
	"regexp"
	"strings"
)

var kenyanMobile = regexp.MustCompile(`^\+254[17-9][0-9]{8}$`)

// NormalizePhone rewrites common Kenyan notations (07.., 2547.., 7..) to E.164.
// Input it cannot interpret is returned trimmed but otherwise untouched.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "254"):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+254" + digits[1:]
	case len(digits) == 9:
		return "+254" + digits
	}
	return raw
}

func ValidPhone(phone string) bool { return kenyanMobile.MatchString(phone) }
