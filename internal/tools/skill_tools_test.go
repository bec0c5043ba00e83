package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type mapSkills map[string]string

func (m mapSkills) LoadContent(name string) (string, error) {
	c, ok := m[name]
	if !ok {
		return "", errors.New("skill not found")
	}
	return c, nil
}

func TestLoadSkill(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]any
		wantError   bool
		wantContent string
	}{
		{"found", map[string]any{"name": "tokamak-docs"}, false, "# Tokamak Docs"},
		{"unknown", map[string]any{"name": "nope"}, true, ""},
		{"missing name", map[string]any{}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(quietLogger())
			r.RegisterSkills(mapSkills{"tokamak-docs": "# Tokamak Docs"})

			out := r.Execute(context.Background(), "load_skill", tt.args)
			if IsErrorResult(out) != tt.wantError {
				t.Fatalf("result %s, wantError %v", out, tt.wantError)
			}
			if tt.wantError {
				return
			}
			var got struct {
				Name    string `json:"name"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", got.Content, tt.wantContent)
			}
		})
	}
}
