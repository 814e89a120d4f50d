package util

import (
	"regexp"
	"strings"
)

const whatsappScheme = "whatsapp:"

var nonDialable = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone strips the relay's channel scheme and punctuation and
// returns an E.164-like number.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, whatsappScheme)
	s = nonDialable.ReplaceAllString(s, "")

	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	} else if s != "" && !strings.HasPrefix(s, "+") {
		s = "+" + s
	}

	return s
}

// WhatsAppAddress returns the relay address form ("whatsapp:+15551234567") of a number.
func WhatsAppAddress(raw string) string {
	n := NormalizePhone(raw)
	if n == "" {
		return ""
	}
	return whatsappScheme + n
}
