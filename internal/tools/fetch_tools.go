package tools

import "github.com/tokamak-network/ai-tokamak/internal/fetch"

// RegisterWebFetch adds the web_fetch tool backed by f.
func (r *Registry) RegisterWebFetch(f *fetch.Fetcher) {
	if f == nil {
		return
	}
	r.Register(&Tool{
		Name:        "web_fetch",
		Description: fetch.ToolDescription,
		Parameters:  fetch.ToolParameters(),
		Handler:     fetch.ToolHandler(f),
	})
}
