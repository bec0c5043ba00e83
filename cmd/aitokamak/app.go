package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/agent"
	"github.com/tokamak-network/ai-tokamak/internal/buildinfo"
	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/chat"
	"github.com/tokamak-network/ai-tokamak/internal/config"
	"github.com/tokamak-network/ai-tokamak/internal/fetch"
	"github.com/tokamak-network/ai-tokamak/internal/forge"
	"github.com/tokamak-network/ai-tokamak/internal/httpkit"
	"github.com/tokamak-network/ai-tokamak/internal/llm"
	"github.com/tokamak-network/ai-tokamak/internal/metrics"
	"github.com/tokamak-network/ai-tokamak/internal/prompts"
	"github.com/tokamak-network/ai-tokamak/internal/session"
	"github.com/tokamak-network/ai-tokamak/internal/skills"
	"github.com/tokamak-network/ai-tokamak/internal/tools"
)

// app holds the components shared by serve and ask.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	sessions *session.Store
	bus      *bus.Bus
	tools    *tools.Registry
	skills   *skills.Loader
	loop     *agent.Loop
	chat     *chat.Handler

	// status contributes channel state to the internal_state tool.
	status func() map[string]any
}

// newApp wires the agent runtime from cfg. Nothing is started.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	a.sessions = session.NewStore(cfg.Session.MaxMessages, session.WithLogger(logger))
	a.metrics.TrackSessions(a.sessions.Len)
	a.bus = bus.New(bus.DefaultBufferSize, logger, bus.WithDropHook(a.metrics.OutboundDropped))

	a.skills = skills.NewLoader(cfg.Skills.Dir,
		skills.WithBuiltin(skills.Builtin()),
		skills.WithEnvOverrides(map[string]string{"GITHUB_TOKEN": cfg.Tools.GitHub.Token}),
		skills.WithLogger(logger),
	)

	registry, err := newToolRegistry(a, logger)
	if err != nil {
		return nil, err
	}
	a.tools = registry

	client, agentCfg, err := newLLMClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	builder := prompts.NewBuilder(
		prompts.WithSkills(a.skills),
		prompts.WithOverride(cfg.Agent.SystemPrompt),
	)
	a.loop = agent.New(client, agentCfg,
		agent.WithTools(a.tools),
		agent.WithPrompts(builder),
		agent.WithObserver(a.metrics),
		agent.WithLogger(logger),
	)

	a.chat = chat.NewHandler(a.sessions, a.loop, a.bus, chat.Config{
		MaxRetries:       cfg.Agent.MaxRetries,
		DiscordMaxLength: cfg.Discord.MaxMessageLength,
	}, logger)

	return a, nil
}

// newToolRegistry registers the built-in tools.
func newToolRegistry(a *app, logger *slog.Logger) (*tools.Registry, error) {
	cfg := a.cfg
	r := tools.NewRegistry(logger)

	r.RegisterInternalState(a.sessions, func() map[string]any {
		if a.status == nil {
			return nil
		}
		return a.status()
	}, buildinfo.StartTime())
	r.RegisterSendMessage(a.bus)

	httpClient := httpkit.NewClient(
		httpkit.WithTimeout(30*time.Second),
		httpkit.WithUserAgent(buildinfo.UserAgent()),
		httpkit.WithRetry(2, time.Second),
		httpkit.WithLogger(logger),
	)
	gh, err := forge.NewGitHub(httpClient, cfg.Tools.GitHub.Token, cfg.Tools.GitHub.Owner, cfg.Tools.GitHub.BaseURL, logger)
	if err != nil {
		return nil, err
	}
	r.RegisterForgeTools(gh)

	r.RegisterWebFetch(fetch.New(fetch.Config{
		MaxChars: cfg.Tools.WebFetch.MaxChars,
		Timeout:  cfg.Tools.WebFetch.Timeout,
	}, logger))
	r.RegisterSkills(a.skills)

	return r, nil
}

// newLLMClient builds a multi-provider client. The first configured
// provider, in preference order, serves the agent model; every other
// provider is registered so per-model routing can reach it.
func newLLMClient(cfg *config.Config, logger *slog.Logger) (llm.Client, agent.Config, error) {
	providers := cfg.Providers.Configured()
	if len(providers) == 0 {
		return nil, agent.Config{}, config.ErrNoProvider
	}

	clients := make(map[string]llm.Client, len(providers))
	for _, p := range providers {
		switch p.Name {
		case config.ProviderAnthropic:
			clients[p.Name] = llm.NewAnthropicClient(llm.AnthropicConfig{
				APIKey:     p.APIKey,
				BaseURL:    p.APIBase,
				MaxRetries: 2,
			}, logger)
		case config.ProviderOpenRouter, config.ProviderOpenAI:
			clients[p.Name] = llm.NewOpenAIClient(llm.OpenAIConfig{
				APIKey:       p.APIKey,
				BaseURL:      p.APIBase,
				DefaultModel: config.ModelFor(p.Name, cfg.Agent.Model),
				MaxRetries:   2,
			}, logger)
		default:
			return nil, agent.Config{}, fmt.Errorf("unsupported provider %q", p.Name)
		}
	}

	primary := providers[0].Name
	multi := llm.NewMultiClient(clients[primary], logger)
	for name, c := range clients {
		multi.AddProvider(name, c)
	}

	model := config.ModelFor(primary, cfg.Agent.Model)
	multi.AddModel(model, primary)

	reviewModel := ""
	if cfg.Agent.KoreanReviewModel != "" {
		reviewModel = config.ModelFor(primary, cfg.Agent.KoreanReviewModel)
		multi.AddModel(reviewModel, primary)
	}

	logger.Info("LLM client initialized",
		"provider", primary,
		"model", model,
		"providers", len(providers),
	)

	return multi, agent.Config{
		Model:         model,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
		MaxIterations: cfg.Agent.MaxIterations,
		MaxHistory:    cfg.Session.MaxHistory,
		EnableReview:  cfg.Agent.EnableKoreanReview,
		ReviewModel:   reviewModel,
	}, nil
}

// ensureDir creates dir if it does not exist.
func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
