package agent

import (
	"strings"
	"unicode"

	"github.com/tokamak-network/ai-tokamak/internal/prompts"
)

// EndMarker is the literal the model emits to end a conversation.
const EndMarker = prompts.EndMarker

// SanitizeInput removes every occurrence of EndMarker from user text so a
// user cannot end their own session by typing it. Removal repeats until
// none remain, since deleting one marker can splice another together.
func SanitizeInput(s string) string {
	for strings.Contains(s, EndMarker) {
		s = strings.ReplaceAll(s, EndMarker, "")
	}
	return s
}

var hangul = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x1100, Hi: 0x11FF, Stride: 1}, // Jamo
		{Lo: 0x3130, Hi: 0x318F, Stride: 1}, // Compatibility Jamo
		{Lo: 0xAC00, Hi: 0xD7AF, Stride: 1}, // Syllables
	},
}

// ContainsHangul reports whether s contains any Hangul syllable or jamo.
func ContainsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(hangul, r) {
			return true
		}
	}
	return false
}
