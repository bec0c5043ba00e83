// Package skills loads SKILL.md instruction documents and summarizes them
// for the system prompt.
//
// A skill lives at <dir>/<name>/SKILL.md with optional YAML frontmatter:
//
//	---
//	name: tokamak-docs
//	description: Look up Tokamak Network documentation
//	metadata:
//	  always: false
//	  requires:
//	    bins: [curl]
//	    env: [GITHUB_TOKEN]
//	---
//
// Workspace skills shadow built-in skills of the same name.
package skills

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SkillFile is the file name of a skill document inside its directory.
const SkillFile = "SKILL.md"

// ErrNotFound is returned when no skill has the requested name.
var ErrNotFound = errors.New("skill not found")

// Source records where a skill was loaded from.
type Source string

const (
	SourceWorkspace Source = "workspace"
	SourceBuiltin   Source = "builtin"
)

// Requirements are the preconditions a skill declares.
type Requirements struct {
	Bins   []string          `yaml:"bins" json:"bins"`
	Env    []string          `yaml:"env" json:"env"`
	EnvSet map[string]string `yaml:"env_set" json:"env_set"`
}

// Meta is the skill-specific metadata block.
type Meta struct {
	Always   bool         `yaml:"always" json:"always"`
	Requires Requirements `yaml:"requires" json:"requires"`
}

// Skill describes one SKILL.md document.
type Skill struct {
	Name        string
	Description string
	Location    string
	Source      Source
	Meta        Meta

	fsys fs.FS
	file string
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Always      bool   `yaml:"always"`
	Metadata    any    `yaml:"metadata"`
}

// Loader discovers skills in a workspace directory and an optional
// built-in file system.
type Loader struct {
	dir     string
	builtin fs.FS
	env     map[string]string
	logger  *slog.Logger

	mu      sync.Mutex
	summary string
	dirty   bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithBuiltin adds a file system of built-in skills laid out as
// <name>/SKILL.md at its root.
func WithBuiltin(fsys fs.FS) Option {
	return func(l *Loader) { l.builtin = fsys }
}

// WithEnvOverrides supplies values used instead of the process
// environment when checking env requirements.
func WithEnvOverrides(env map[string]string) Option {
	return func(l *Loader) { l.env = env }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a loader for the workspace skills directory. An
// empty dir disables workspace skills.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{dir: dir, dirty: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the workspace skills directory.
func (l *Loader) Dir() string { return l.dir }

// List returns all skills sorted by name. Workspace skills win over
// built-in skills with the same name.
func (l *Loader) List() ([]Skill, error) {
	var out []Skill
	seen := make(map[string]bool)

	if l.dir != "" {
		skills, err := scan(os.DirFS(l.dir), SourceWorkspace, l.dir)
		if err != nil {
			return nil, err
		}
		for _, s := range skills {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	if l.builtin != nil {
		skills, err := scan(l.builtin, SourceBuiltin, "builtin:")
		if err != nil {
			return nil, err
		}
		for _, s := range skills {
			if !seen[s.Name] {
				seen[s.Name] = true
				out = append(out, s)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func scan(fsys fs.FS, src Source, root string) ([]Skill, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil // No skills dir is fine
		}
		return nil, fmt.Errorf("read skills dir: %w", err)
	}

	var skills []Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		file := path.Join(e.Name(), SkillFile)
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			continue // Directory without SKILL.md
		}
		fm, _ := parseFrontmatter(string(data))

		s := Skill{
			Name:        e.Name(),
			Description: e.Name(),
			Source:      src,
			fsys:        fsys,
			file:        file,
		}
		if src == SourceWorkspace {
			s.Location = filepath.Join(root, e.Name(), SkillFile)
		} else {
			s.Location = root + file
		}
		if fm.Name != "" {
			s.Name = fm.Name
		}
		if fm.Description != "" {
			s.Description = fm.Description
		}
		s.Meta = decodeMeta(fm.Metadata)
		s.Meta.Always = s.Meta.Always || fm.Always
		skills = append(skills, s)
	}
	return skills, nil
}

// Load returns the raw SKILL.md content for name.
func (l *Loader) Load(name string) (string, error) {
	skills, err := l.List()
	if err != nil {
		return "", err
	}
	for _, s := range skills {
		if s.Name == name {
			data, err := fs.ReadFile(s.fsys, s.file)
			if err != nil {
				return "", fmt.Errorf("read skill %s: %w", name, err)
			}
			return string(data), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// LoadContent returns the skill body with frontmatter stripped.
func (l *Loader) LoadContent(name string) (string, error) {
	raw, err := l.Load(name)
	if err != nil {
		return "", err
	}
	_, body := parseFrontmatter(raw)
	return strings.TrimSpace(body), nil
}

// AlwaysSkills returns the names of available skills flagged always.
func (l *Loader) AlwaysSkills() []string {
	skills, err := l.List()
	if err != nil {
		return nil
	}
	var names []string
	for _, s := range skills {
		if s.Meta.Always && l.Available(s) {
			names = append(names, s.Name)
		}
	}
	return names
}

// Available reports whether every requirement of s is met.
func (l *Loader) Available(s Skill) bool {
	return len(l.Missing(s)) == 0
}

// Missing lists the unmet requirements of s.
func (l *Loader) Missing(s Skill) []string {
	var missing []string
	req := s.Meta.Requires
	for _, b := range req.Bins {
		if _, err := exec.LookPath(b); err != nil {
			missing = append(missing, "CLI: "+b)
		}
	}
	for _, name := range req.Env {
		if l.getenv(name) == "" {
			missing = append(missing, "ENV: "+name)
		}
	}
	keys := make([]string, 0, len(req.EnvSet))
	for k := range req.EnvSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if l.getenv(k) != req.EnvSet[k] {
			missing = append(missing, fmt.Sprintf("ENV %s=%s", k, req.EnvSet[k]))
		}
	}
	return missing
}

func (l *Loader) getenv(name string) string {
	if v, ok := l.env[name]; ok {
		return v
	}
	return os.Getenv(name)
}

// Invalidate marks the cached summary stale.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.dirty = true
	l.mu.Unlock()
}

// BuildSummary returns an XML <skills> block describing every skill, or
// "" when there are none. The result is cached until Invalidate.
func (l *Loader) BuildSummary() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return l.summary
	}

	skills, err := l.List()
	if err != nil {
		l.logger.Warn("skills summary failed", "dir", l.dir, "error", err)
		return l.summary
	}
	l.summary = l.renderSummary(skills)
	l.dirty = false
	l.logger.Debug("skills summary rebuilt", "skills", len(skills))
	return l.summary
}

func (l *Loader) renderSummary(skills []Skill) string {
	if len(skills) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<skills>\n")
	for _, s := range skills {
		missing := l.Missing(s)
		fmt.Fprintf(&sb, "  <skill available=\"%t\">\n", len(missing) == 0)
		fmt.Fprintf(&sb, "    <name>%s</name>\n", escapeXML(s.Name))
		fmt.Fprintf(&sb, "    <description>%s</description>\n", escapeXML(s.Description))
		fmt.Fprintf(&sb, "    <location>%s</location>\n", escapeXML(s.Location))
		if len(missing) > 0 {
			fmt.Fprintf(&sb, "    <requires>%s</requires>\n", escapeXML(strings.Join(missing, ", ")))
		}
		sb.WriteString("  </skill>\n")
	}
	sb.WriteString("</skills>")
	return sb.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeXML(s string) string { return xmlEscaper.Replace(s) }

// parseFrontmatter splits a document into its YAML frontmatter and body.
// Documents without a well-formed "---" block return the raw text as body.
func parseFrontmatter(raw string) (frontmatter, string) {
	var fm frontmatter
	if !strings.HasPrefix(raw, "---") {
		return fm, raw
	}

	rest := strings.TrimLeft(raw[3:], " \t")
	switch {
	case strings.HasPrefix(rest, "\n"):
		rest = rest[1:]
	case strings.HasPrefix(rest, "\r\n"):
		rest = rest[2:]
	default:
		return fm, raw
	}

	closeIdx := strings.Index(rest, "\n---")
	if closeIdx < 0 {
		return fm, raw
	}
	block := rest[:closeIdx]
	body := strings.TrimLeft(rest[closeIdx+4:], "\r\n")

	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return frontmatter{}, body
	}
	return fm, body
}

// decodeMeta accepts metadata as a YAML mapping or as a JSON string.
// Either form may nest the fields under a "nanobot" key.
func decodeMeta(v any) Meta {
	var raw map[string]any
	switch m := v.(type) {
	case map[string]any:
		raw = m
	case string:
		if err := json.Unmarshal([]byte(m), &raw); err != nil {
			return Meta{}
		}
	default:
		return Meta{}
	}
	if inner, ok := raw["nanobot"].(map[string]any); ok {
		raw = inner
	}

	// Round-trip through JSON to reuse the struct tags for both forms.
	b, err := json.Marshal(raw)
	if err != nil {
		return Meta{}
	}
	var meta Meta
	if err := json.Unmarshal(b, &meta); err != nil {
		return Meta{}
	}
	return meta
}
