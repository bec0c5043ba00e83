package llm

import (
	"context"
	"log/slog"
	"strings"
)

// MultiClient routes requests to the appropriate provider based on model name.
type MultiClient struct {
	clients  map[string]Client // provider name → client
	models   map[string]string // model name → provider name
	fallback Client            // default client for unknown models
	logger   *slog.Logger
}

// NewMultiClient creates a client that routes to multiple providers.
func NewMultiClient(fallback Client, logger *slog.Logger) *MultiClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiClient{
		clients:  make(map[string]Client),
		models:   make(map[string]string),
		fallback: fallback,
		logger:   logger,
	}
}

// AddProvider registers a client for a provider name.
func (m *MultiClient) AddProvider(name string, client Client) {
	m.clients[name] = client
}

// AddModel maps a model name to a provider.
func (m *MultiClient) AddModel(modelName, providerName string) {
	m.models[modelName] = providerName
}

// Providers returns the registered provider names.
func (m *MultiClient) Providers() []string {
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	return names
}

// clientFor returns the appropriate client for a model and the model name
// that client expects. Explicit model mappings win; otherwise a
// "provider/model" name goes to a registered provider of that name with
// the prefix removed.
func (m *MultiClient) clientFor(model string) (Client, string) {
	if provider, ok := m.models[model]; ok {
		if client, ok := m.clients[provider]; ok {
			return client, model
		}
		m.logger.Warn("model mapped to unknown provider, using fallback",
			"model", model, "provider", provider)
		return m.fallback, model
	}
	if provider, name, ok := strings.Cut(model, "/"); ok && name != "" {
		if client, ok := m.clients[provider]; ok {
			return client, name
		}
	}
	return m.fallback, model
}

// Chat sends a request to the appropriate provider for the model.
func (m *MultiClient) Chat(ctx context.Context, req *Request) *Response {
	client, model := m.clientFor(req.Model)
	if client == nil {
		m.logger.Error("no provider configured for model", "model", req.Model)
		return ErrorResponse(req.Model)
	}
	if model != req.Model {
		routed := *req
		routed.Model = model
		req = &routed
	}
	return client.Chat(ctx, req)
}
