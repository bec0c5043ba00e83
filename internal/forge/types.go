// Package forge reads public project data from GitHub for the agent:
// repository metadata and releases of the Tokamak Network projects.
package forge

import "time"

// Repo is a repository summary.
type Repo struct {
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	URL           string    `json:"url"`
	Language      string    `json:"language,omitempty"`
	DefaultBranch string    `json:"default_branch"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"open_issues"`
	Topics        []string  `json:"topics,omitempty"`
	License       string    `json:"license,omitempty"`
	Archived      bool      `json:"archived,omitempty"`
	PushedAt      time.Time `json:"pushed_at"`
}

// Release is a published release.
type Release struct {
	Tag         string    `json:"tag"`
	Name        string    `json:"name,omitempty"`
	Body        string    `json:"body,omitempty"`
	URL         string    `json:"url"`
	Author      string    `json:"author,omitempty"`
	Prerelease  bool      `json:"prerelease,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
