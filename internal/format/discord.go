// Package format adapts model replies to the markdown dialect of each
// delivery surface.
package format

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DiscordMaxLength is the per-message limit used for Discord replies,
// kept below the API's hard limit of 2000.
const DiscordMaxLength = 1900

var (
	hrBetween     = regexp.MustCompile(`\n---+\n`)
	hrLine        = regexp.MustCompile(`(?m)^---+$`)
	codeSpan      = regexp.MustCompile("(?s)```.*?```|`[^`\n]+`")
	maskedLink    = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	bareURL       = regexp.MustCompile(`<?https?://[^\s<>]+>?`)
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
	extraNewlines = regexp.MustCompile(`\n{3,}`)
)

// placeholder marks protected spans while the rest of the text is
// rewritten. NUL never appears in model output.
func placeholder(kind string, i int) string {
	return fmt.Sprintf("\x00%s%d\x00", kind, i)
}

// DiscordMessage rewrites markdown for Discord: horizontal rules are
// removed, links are wrapped in angle brackets so Discord does not embed
// a preview, trailing spaces are dropped and runs of blank lines are
// collapsed. Code spans are left untouched.
func DiscordMessage(s string) string {
	s = hrBetween.ReplaceAllString(s, "\n\n")
	s = hrLine.ReplaceAllString(s, "")

	var code []string
	s = codeSpan.ReplaceAllStringFunc(s, func(m string) string {
		code = append(code, m)
		return placeholder("C", len(code)-1)
	})

	var links []string
	s = maskedLink.ReplaceAllStringFunc(s, func(m string) string {
		parts := maskedLink.FindStringSubmatch(m)
		url := strings.Trim(strings.TrimSpace(parts[2]), "<>")
		links = append(links, fmt.Sprintf("[%s](<%s>)", parts[1], url))
		return placeholder("L", len(links)-1)
	})

	s = bareURL.ReplaceAllStringFunc(s, wrapURL)
	s = trailingSpace.ReplaceAllString(s, "")

	for i, l := range links {
		s = strings.Replace(s, placeholder("L", i), l, 1)
	}
	for i, c := range code {
		s = strings.Replace(s, placeholder("C", i), c, 1)
	}

	return extraNewlines.ReplaceAllString(s, "\n\n")
}

// wrapURL encloses a bare URL in angle brackets. Already wrapped URLs are
// returned unchanged; trailing sentence punctuation stays outside.
func wrapURL(m string) string {
	if strings.HasPrefix(m, "<") {
		return m
	}
	suffix := ""
	if strings.HasSuffix(m, ">") {
		m, suffix = m[:len(m)-1], ">"
	}
	trimmed := strings.TrimRight(m, ".,!?;:")
	suffix = m[len(trimmed):] + suffix
	return "<" + trimmed + ">" + suffix
}

// Split breaks s into chunks of at most max runes, preferring to cut at
// newlines and falling back to a hard cut inside long lines. max <= 0
// uses DiscordMaxLength.
func Split(s string, max int) []string {
	if max <= 0 {
		max = DiscordMaxLength
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var chunks []string
	for utf8.RuneCountInString(s) > max {
		limit := byteOffset(s, max)
		cut := strings.LastIndexByte(s[:limit], '\n')
		next := cut + 1
		if cut <= 0 {
			cut, next = limit, limit
		}
		if chunk := strings.TrimRight(s[:cut], " \t\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		s = strings.TrimLeft(s[next:], "\n")
	}
	if strings.TrimSpace(s) != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// byteOffset returns the byte index of the n-th rune of s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
