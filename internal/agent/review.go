package agent

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tokamak-network/ai-tokamak/internal/llm"
	"github.com/tokamak-network/ai-tokamak/internal/prompts"
)

const (
	reviewTemperature = 0.3
	minReviewLength   = 10
	minReviewRatio    = 0.5
	maxReviewRatio    = 2.0
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>]+`)

// review asks the model to polish Korean text and returns the revision
// only when it passes the sanity checks; otherwise the original.
func (l *Loop) review(ctx context.Context, content string) string {
	if utf8.RuneCountInString(content) < minReviewLength {
		return content
	}

	model := l.cfg.ReviewModel
	if model == "" {
		model = l.cfg.Model
	}
	resp := l.chat(ctx, &llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompts.ReviewPrompt + content}},
		Model:       model,
		MaxTokens:   l.cfg.MaxTokens,
		Temperature: reviewTemperature,
	})
	if resp.IsError() || strings.TrimSpace(resp.Content) == "" {
		l.logger.Warn("korean review failed, keeping original", "model", model)
		l.observer.ReviewFinished(false)
		return content
	}

	reviewed := strings.TrimSpace(resp.Content)
	if reason := rejectReview(content, reviewed); reason != "" {
		l.logger.Warn("korean review rejected, keeping original", "reason", reason,
			"original_len", utf8.RuneCountInString(content),
			"reviewed_len", utf8.RuneCountInString(reviewed))
		l.observer.ReviewFinished(false)
		return content
	}

	l.logger.Debug("korean review applied",
		"original_len", utf8.RuneCountInString(content),
		"reviewed_len", utf8.RuneCountInString(reviewed))
	l.observer.ReviewFinished(true)
	return reviewed
}

// rejectReview returns why reviewed is not an acceptable revision of
// original, or "" when it is.
func rejectReview(original, reviewed string) string {
	orig := float64(utf8.RuneCountInString(original))
	got := float64(utf8.RuneCountInString(reviewed))
	if got < orig*minReviewRatio || got > orig*maxReviewRatio {
		return "length out of range"
	}
	if !sameURLs(original, reviewed) {
		return "urls changed"
	}
	return ""
}

func urlSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, u := range urlPattern.FindAllString(s, -1) {
		set[u] = struct{}{}
	}
	return set
}

func sameURLs(a, b string) bool {
	sa, sb := urlSet(a), urlSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for u := range sa {
		if _, ok := sb[u]; !ok {
			return false
		}
	}
	return true
}
