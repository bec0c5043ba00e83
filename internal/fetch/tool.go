package fetch

import (
	"context"
	"encoding/json"
)

// ToolDescription is the web_fetch description shown to the model.
const ToolDescription = "Fetch URL and extract readable content (HTML to text). " +
	"Use for Tokamak Network docs, blog posts, or pages the user links."

// ToolHandler returns a tools.Tool handler wrapping f. Failures are
// reported in-band as {"error": ..., "url": ...} so the model sees which
// URL failed.
func ToolHandler(f *Fetcher) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		rawURL, _ := args["url"].(string)

		maxChars := 0
		switch mc := args["max_chars"].(type) {
		case float64:
			maxChars = int(mc)
		case int:
			maxChars = mc
		}

		result, err := f.Fetch(ctx, rawURL, maxChars)
		if err != nil {
			f.logger.Warn("web fetch failed", "url", rawURL, "error", err)
			return encode(map[string]any{"error": err.Error(), "url": rawURL})
		}
		return encode(result)
	}
}

func encode(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ToolParameters returns the JSON Schema for the web_fetch tool.
func ToolParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL to fetch",
			},
			"max_chars": map[string]any{
				"type":        "integer",
				"minimum":     MinMaxChars,
				"description": "Max characters to return",
			},
		},
		"required": []string{"url"},
	}
}
