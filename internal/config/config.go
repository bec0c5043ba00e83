// Package config handles ai-tokamak configuration loading.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names, in order of preference.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
)

// Defaults.
const (
	DefaultPort             = 8080
	DefaultModel            = "anthropic/claude-sonnet-4"
	DefaultOpenRouterBase   = "https://openrouter.ai/api/v1"
	DefaultMaxTokens        = 4096
	DefaultTemperature      = 0.7
	DefaultMaxIterations    = 10
	DefaultMaxRetries       = 1
	DefaultMaxMessages      = 100
	DefaultMaxHistory       = 20
	DefaultCleanupInterval  = 10 * time.Minute
	DefaultSessionMaxAge    = time.Hour
	DefaultWebFetchMaxChars = 50000
	DefaultWebFetchTimeout  = 30 * time.Second
	DefaultGitHubOwner      = "tokamak-network"
	DefaultMQTTTopicPrefix  = "aitokamak"
	DefaultMQTTRateLimit    = 60
	DefaultDiscordMaxLength = 1900
	DefaultDataDir          = "data"
	DefaultSkillsDir        = "skills"
)

// ErrNoProvider is returned by Validate when no provider has an API key.
var ErrNoProvider = errors.New("no LLM provider configured: set providers.openrouter, providers.anthropic or providers.openai api_key")

// DefaultYAML is the annotated starter config written by "aitokamak init".
//
//go:embed default.yaml
var DefaultYAML []byte

// DefaultSearchPaths returns the config file search order used when no
// explicit path is given: ./config.yaml, ~/.config/aitokamak/config.yaml,
// /etc/aitokamak/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "aitokamak", "config.yaml"))
	}
	return append(paths, "/etc/aitokamak/config.yaml")
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all ai-tokamak configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Logging   LoggingConfig   `yaml:"logging"`
	Session   SessionConfig   `yaml:"session"`
	Providers ProvidersConfig `yaml:"providers"`
	Agent     AgentConfig     `yaml:"agent"`
	Skills    SkillsConfig    `yaml:"skills"`
	Tools     ToolsConfig     `yaml:"tools"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Discord   DiscordConfig   `yaml:"discord"`
	DataDir   string          `yaml:"data_dir"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // empty means all interfaces
	Port    int    `yaml:"port"`
}

// Addr returns the host:port to listen on.
func (l ListenConfig) Addr() string {
	return net.JoinHostPort(l.Address, strconv.Itoa(l.Port))
}

// LoggingConfig selects log level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SessionConfig bounds conversation history and idle lifetime.
type SessionConfig struct {
	MaxMessages     int           `yaml:"max_messages"`
	MaxHistory      int           `yaml:"max_history"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxAge          time.Duration `yaml:"max_age"`
}

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	APIBase string `yaml:"api_base"`
}

// Configured reports whether the provider has an API key.
func (p ProviderConfig) Configured() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// ProvidersConfig lists the supported providers.
type ProvidersConfig struct {
	OpenRouter ProviderConfig `yaml:"openrouter"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	OpenAI     ProviderConfig `yaml:"openai"`
}

// NamedProvider pairs a provider name with its settings.
type NamedProvider struct {
	Name string
	ProviderConfig
}

// Configured returns providers with API keys in order of preference.
func (p ProvidersConfig) Configured() []NamedProvider {
	var out []NamedProvider
	for _, np := range []NamedProvider{
		{ProviderOpenRouter, p.OpenRouter},
		{ProviderAnthropic, p.Anthropic},
		{ProviderOpenAI, p.OpenAI},
	} {
		if np.Configured() {
			out = append(out, np)
		}
	}
	return out
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	Model              string  `yaml:"model"`
	MaxTokens          int     `yaml:"max_tokens"`
	Temperature        float64 `yaml:"temperature"`
	MaxIterations      int     `yaml:"max_iterations"`
	MaxRetries         int     `yaml:"max_retries"`
	EnableKoreanReview bool    `yaml:"enable_korean_review"`
	KoreanReviewModel  string  `yaml:"korean_review_model"`
	// SystemPrompt replaces the built-in prompt when set.
	SystemPrompt string `yaml:"system_prompt"`
}

// ModelFor returns the model name to send to provider. OpenRouter takes
// "vendor/model" names; direct providers take the bare model name.
func ModelFor(provider, model string) string {
	if provider == ProviderOpenRouter {
		return model
	}
	if vendor, name, ok := strings.Cut(model, "/"); ok && vendor == provider {
		return name
	}
	return model
}

// SkillsConfig locates workspace skills.
type SkillsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// ToolsConfig configures built-in tools.
type ToolsConfig struct {
	WebFetch WebFetchConfig `yaml:"web_fetch"`
	GitHub   GitHubConfig   `yaml:"github"`
}

// WebFetchConfig configures the web_fetch tool.
type WebFetchConfig struct {
	MaxChars int           `yaml:"max_chars"`
	Timeout  time.Duration `yaml:"timeout"`
}

// GitHubConfig configures the github_repo tool. The token is optional;
// without it requests are subject to the anonymous rate limit.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	Owner   string `yaml:"owner"`
	BaseURL string `yaml:"base_url"` // GitHub Enterprise API URL
}

// MQTTConfig configures the MQTT transport. It is disabled when Broker
// is empty.
type MQTTConfig struct {
	Broker             string `yaml:"broker"` // mqtt://host:1883 or mqtts://host:8883
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	ClientID           string `yaml:"client_id"`
	TopicPrefix        string `yaml:"topic_prefix"`
	PlainText          bool   `yaml:"plain_text"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// SchedulerConfig configures the task scheduler.
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// DiscordConfig controls Discord reply formatting.
type DiscordConfig struct {
	MaxMessageLength int `yaml:"max_message_length"`
}

// Default returns a configuration with every default applied and no
// provider credentials.
func Default() *Config {
	cfg := &Config{
		Listen:  ListenConfig{Port: DefaultPort},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Session: SessionConfig{
			MaxMessages:     DefaultMaxMessages,
			MaxHistory:      DefaultMaxHistory,
			CleanupInterval: DefaultCleanupInterval,
			MaxAge:          DefaultSessionMaxAge,
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{APIBase: DefaultOpenRouterBase},
		},
		Agent: AgentConfig{
			Model:              DefaultModel,
			MaxTokens:          DefaultMaxTokens,
			Temperature:        DefaultTemperature,
			MaxIterations:      DefaultMaxIterations,
			MaxRetries:         DefaultMaxRetries,
			EnableKoreanReview: true,
		},
		Skills: SkillsConfig{Dir: DefaultSkillsDir, Watch: true},
		Tools: ToolsConfig{
			WebFetch: WebFetchConfig{MaxChars: DefaultWebFetchMaxChars, Timeout: DefaultWebFetchTimeout},
			GitHub:   GitHubConfig{Owner: DefaultGitHubOwner},
		},
		MQTT: MQTTConfig{
			TopicPrefix:        DefaultMQTTTopicPrefix,
			RateLimitPerMinute: DefaultMQTTRateLimit,
		},
		Scheduler: SchedulerConfig{Enabled: true},
		Discord:   DiscordConfig{MaxMessageLength: DefaultDiscordMaxLength},
		DataDir:   DefaultDataDir,
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file. Environment variables are
// expanded before parsing and unset fields keep their defaults. The
// result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Scheduler.DBPath = ""
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills values explicitly zeroed in the file where zero
// has no meaning.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultPort
	}
	if c.Session.MaxMessages <= 0 {
		c.Session.MaxMessages = DefaultMaxMessages
	}
	if c.Session.MaxHistory <= 0 {
		c.Session.MaxHistory = DefaultMaxHistory
	}
	if c.Session.CleanupInterval <= 0 {
		c.Session.CleanupInterval = DefaultCleanupInterval
	}
	if c.Session.MaxAge <= 0 {
		c.Session.MaxAge = DefaultSessionMaxAge
	}
	if c.Providers.OpenRouter.APIBase == "" {
		c.Providers.OpenRouter.APIBase = DefaultOpenRouterBase
	}
	if c.Agent.Model == "" {
		c.Agent.Model = DefaultModel
	}
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = DefaultMaxTokens
	}
	if c.Tools.GitHub.Owner == "" {
		c.Tools.GitHub.Owner = DefaultGitHubOwner
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
	if c.Discord.MaxMessageLength <= 0 {
		c.Discord.MaxMessageLength = DefaultDiscordMaxLength
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Scheduler.DBPath == "" {
		c.Scheduler.DBPath = filepath.Join(c.DataDir, "scheduler.db")
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if len(c.Providers.Configured()) == 0 {
		return ErrNoProvider
	}
	if t := c.Agent.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("agent.temperature %.2f out of range 0 to 2", t)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries must not be negative, got %d", c.Agent.MaxRetries)
	}
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}
