package lead

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TriggerKeywords are lower-case substrings that suggest contact or
// scheduling intent. "6" catches Spanish mobile numbers.
var TriggerKeywords = []string{
	"@", "correo", "mail", "llamame", "tlf", "telefono", "teléfono", "6",
	"visita", "verlo", "cita", "cambiar", "mejor el", "puedo el", "quedamos",
	"reunión", "a las",
}

// MinDigitMessageLen is the length a message must exceed for a bare digit to
// trigger extraction.
const MinDigitMessageLen = 5

// ShouldExtract is the local gate in front of the extraction call.
func ShouldExtract(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range TriggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if utf8.RuneCountInString(text) <= MinDigitMessageLen {
		return false
	}
	return strings.IndexFunc(text, unicode.IsDigit) >= 0
}
