package tools

import (
	"context"
	"fmt"

	"github.com/tokamak-network/ai-tokamak/internal/forge"
)

// RepoReader is the GitHub surface used by the github_repo tool.
// Implemented by forge.GitHub.
type RepoReader interface {
	GetRepo(ctx context.Context, repo string) (*forge.Repo, error)
	ListReleases(ctx context.Context, repo string, limit int) ([]*forge.Release, error)
	LatestRelease(ctx context.Context, repo string) (*forge.Release, error)
}

// RegisterForgeTools adds the github_repo tool.
func (r *Registry) RegisterForgeTools(gh RepoReader) {
	if gh == nil {
		return
	}

	r.Register(&Tool{
		Name: "github_repo",
		Description: "Look up a Tokamak Network GitHub repository: metadata, recent releases, or the latest release. " +
			"Use for questions about code, versions, or release notes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"info", "releases", "latest_release"},
					"description": "What to fetch",
				},
				"repo": map[string]any{
					"type":        "string",
					"description": "Repository as owner/name, or a bare name under tokamak-network (e.g. tokamak-thanos)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of releases for the releases action (default 5, max 30)",
				},
			},
			"required": []string{"action", "repo"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			repo := stringArg(args, "repo")
			if repo == "" {
				return "", fmt.Errorf("repo is required")
			}

			switch action := stringArg(args, "action"); action {
			case "info":
				info, err := gh.GetRepo(ctx, repo)
				if err != nil {
					return "", err
				}
				return JSONResult(info), nil
			case "releases":
				releases, err := gh.ListReleases(ctx, repo, intArg(args, "limit", 5))
				if err != nil {
					return "", err
				}
				return JSONResult(map[string]any{"repo": repo, "releases": releases}), nil
			case "latest_release":
				rel, err := gh.LatestRelease(ctx, repo)
				if err != nil {
					return "", err
				}
				return JSONResult(rel), nil
			default:
				return "", fmt.Errorf("unknown action: %s", action)
			}
		},
	})
}
