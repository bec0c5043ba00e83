package forge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v69/github"
)

// maxReleaseBody bounds release notes returned to the model.
const maxReleaseBody = 2000

// GitHub reads repository data through the go-github SDK.
type GitHub struct {
	client *gogithub.Client
	owner  string // default owner for unqualified repo names
	logger *slog.Logger
}

// NewGitHub creates a GitHub reader. token may be empty for anonymous
// access. baseURL, when set, points at a GitHub Enterprise style API
// root and is mainly used by tests.
func NewGitHub(httpClient *http.Client, token, owner, baseURL string, logger *slog.Logger) (*GitHub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := gogithub.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("forge: base url: %w", err)
		}
	}
	return &GitHub{client: client, owner: owner, logger: logger}, nil
}

// Owner returns the default owner for bare repository names.
func (g *GitHub) Owner() string { return g.owner }

// splitRepo splits "owner/repo" into its parts. A bare name uses the
// default owner.
func (g *GitHub) splitRepo(repo string) (string, string, error) {
	repo = strings.TrimSpace(repo)
	if !strings.Contains(repo, "/") {
		if g.owner == "" || repo == "" {
			return "", "", fmt.Errorf("invalid repo %q: expected owner/repo", repo)
		}
		return g.owner, repo, nil
	}
	parts := strings.SplitN(repo, "/", 2)
	if parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q: expected owner/repo", repo)
	}
	return parts[0], parts[1], nil
}

// checkRateLimit logs a warning when remaining API calls drop below threshold.
func (g *GitHub) checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 10 {
		g.logger.Warn("forge: github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset", resp.Rate.Reset.Time,
		)
	}
}

// GetRepo fetches repository metadata.
func (g *GitHub) GetRepo(ctx context.Context, repo string) (*Repo, error) {
	owner, name, err := g.splitRepo(repo)
	if err != nil {
		return nil, err
	}

	result, resp, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("forge: get repo: %w", err)
	}
	g.checkRateLimit(resp)
	return convertRepo(result), nil
}

// ListReleases returns up to limit of the most recent releases.
func (g *GitHub) ListReleases(ctx context.Context, repo string, limit int) ([]*Release, error) {
	owner, name, err := g.splitRepo(repo)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 30 {
		limit = 5
	}

	results, resp, err := g.client.Repositories.ListReleases(ctx, owner, name, &gogithub.ListOptions{PerPage: limit})
	if err != nil {
		return nil, fmt.Errorf("forge: list releases: %w", err)
	}
	g.checkRateLimit(resp)

	releases := make([]*Release, 0, len(results))
	for _, r := range results {
		if r.GetDraft() {
			continue
		}
		releases = append(releases, convertRelease(r))
		if len(releases) >= limit {
			break
		}
	}
	return releases, nil
}

// LatestRelease returns the most recent non-prerelease release.
func (g *GitHub) LatestRelease(ctx context.Context, repo string) (*Release, error) {
	owner, name, err := g.splitRepo(repo)
	if err != nil {
		return nil, err
	}

	result, resp, err := g.client.Repositories.GetLatestRelease(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("forge: latest release: %w", err)
	}
	g.checkRateLimit(resp)
	return convertRelease(result), nil
}

func convertRepo(r *gogithub.Repository) *Repo {
	return &Repo{
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		URL:           r.GetHTMLURL(),
		Language:      r.GetLanguage(),
		DefaultBranch: r.GetDefaultBranch(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		Topics:        r.Topics,
		License:       r.GetLicense().GetSPDXID(),
		Archived:      r.GetArchived(),
		PushedAt:      r.GetPushedAt().Time,
	}
}

func convertRelease(r *gogithub.RepositoryRelease) *Release {
	body := r.GetBody()
	if len([]rune(body)) > maxReleaseBody {
		body = string([]rune(body)[:maxReleaseBody]) + "..."
	}
	return &Release{
		Tag:         r.GetTagName(),
		Name:        r.GetName(),
		Body:        body,
		URL:         r.GetHTMLURL(),
		Author:      r.GetAuthor().GetLogin(),
		Prerelease:  r.GetPrerelease(),
		PublishedAt: r.GetPublishedAt().Time,
	}
}
