package tools

import (
	"context"
	"errors"
	"fmt"
)

// SkillReader loads skill instructions by name. Implemented by
// skills.Loader.
type SkillReader interface {
	LoadContent(name string) (string, error)
}

// RegisterSkills adds the load_skill tool, which returns the full body
// of a skill listed in the system prompt.
func (r *Registry) RegisterSkills(skills SkillReader) {
	r.Register(&Tool{
		Name: "load_skill",
		Description: "Load the full instructions of a skill listed in <skills>. " +
			"Call this before following a skill you have not loaded in this conversation.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Skill name as shown in the skills summary",
				},
			},
			"required": []string{"name"},
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			name := stringArg(args, "name")
			if name == "" {
				return "", errors.New("name is required")
			}
			content, err := skills.LoadContent(name)
			if err != nil {
				return "", fmt.Errorf("load skill %s: %w", name, err)
			}
			return JSONResult(map[string]any{
				"name":    name,
				"content": content,
			}), nil
		},
	})
}
