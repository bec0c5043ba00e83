package prompts

import (
	"strings"
	"sync"
	"time"
)

// cacheKeyLayout buckets the cached base prompt per minute, matching the
// resolution of the clock shown in the identity section.
const cacheKeyLayout = "2006-01-02 15:04"

const (
	sectionSep       = "\n\n\n"
	patternsHeader   = "# Answer Patterns (for this question)"
	allPatternsTitle = "# All Answer Patterns"
)

const skillsTemplate = `# Available Skills

You have access to specialized skills for specific tasks. When a user request matches a skill's purpose, call the load_skill tool with the skill name and follow the instructions it returns.

{{SUMMARY}}

**How to use skills:**
1. User asks something that matches a skill description
2. Call load_skill to read that skill's SKILL.md
3. Follow the instructions in that skill
4. If no skill matches, use your general knowledge and tools`

// SummarySource supplies the skills summary. An empty summary omits the
// skills section.
type SummarySource interface {
	BuildSummary() string
}

type promptCache struct {
	key   string
	value string
}

// Builder assembles the system prompt. The base prompt (identity,
// guidelines, knowledge, skills) is cached per clock minute and skills
// presence; answer patterns are appended per message.
type Builder struct {
	now      func() time.Time
	skills   SummarySource
	override string

	mu    sync.Mutex
	cache promptCache
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithSkills sets the skills summary source.
func WithSkills(src SummarySource) BuilderOption {
	return func(b *Builder) { b.skills = src }
}

// WithOverride replaces the built prompt with a fixed one. Empty keeps
// the default.
func WithOverride(prompt string) BuilderOption {
	return func(b *Builder) { b.override = prompt }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Base returns the cached base prompt, rebuilding it when the minute or
// skills presence changes.
func (b *Builder) Base() string {
	if b.override != "" {
		return b.override
	}

	now := b.now()
	summary := ""
	if b.skills != nil {
		summary = b.skills.BuildSummary()
	}
	key := now.Format(cacheKeyLayout)
	if summary != "" {
		key += "|skills"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cache.key == key {
		return b.cache.value
	}

	sections := []string{
		BaseIdentity(now),
		DiscordGuidelines(),
		TokamakKnowledge(),
	}
	if summary != "" {
		sections = append(sections, strings.Replace(skillsTemplate, "{{SUMMARY}}", summary, 1))
	}
	b.cache = promptCache{key: key, value: strings.Join(sections, sectionSep)}
	return b.cache.value
}

// Build returns the system prompt for message: the base prompt plus the
// answer patterns the message matches.
func (b *Builder) Build(message string) string {
	base := b.Base()
	if b.override != "" || message == "" {
		return base
	}
	if patterns := MatchingPatterns(message); patterns != "" {
		return base + sectionSep + patternsHeader + "\n\n" + patterns
	}
	return base
}

// BuildAll returns the base prompt with every answer pattern attached.
func (b *Builder) BuildAll() string {
	return b.Base() + sectionSep + allPatternsTitle + "\n\n" + AllPatterns()
}
