// Package tools defines the tools available to the agent.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/tokamak-network/ai-tokamak/internal/llm"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string                                                     `json:"name"`
	Description string                                                     `json:"description"`
	Parameters  map[string]any                                             `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry. Registering a name twice
// replaces the earlier tool but keeps its original position.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the tool schemas offered to the model, in
// registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

// Execute runs a tool by name. It never fails: unknown tools, handler
// errors and handler panics all come back as an error JSON payload.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result string) {
	tool := r.Get(name)
	if tool == nil {
		err := &ErrToolNotFound{Name: name}
		r.logger.Warn("tool not found", "tool", name)
		return ErrorResult(err.Error())
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				"tool", name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			result = ErrorResult(fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	if args == nil {
		args = map[string]any{}
	}

	out, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return ErrorResult(err.Error())
	}
	return out
}

// ErrorResult returns the conventional error payload {"error": msg}.
func ErrorResult(msg string) string {
	return JSONResult(map[string]any{"error": msg})
}

// JSONResult encodes v as JSON without HTML escaping. Encoding failures
// become an error payload.
func JSONResult(v any) string {
	b, err := marshalNoEscape(v)
	if err != nil {
		return `{"error":"failed to encode tool result"}`
	}
	return string(b)
}

// IsErrorResult reports whether a tool result is an error payload: a
// JSON object with a top-level "error" key.
func IsErrorResult(s string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return false
	}
	_, ok := obj["error"]
	return ok
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// stringArg returns a string argument or "".
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg returns an integer argument, accepting JSON numbers and
// numeric strings, or def when absent or invalid.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}
