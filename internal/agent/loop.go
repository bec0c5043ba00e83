// Package agent implements the core agent loop: it turns one user message
// into a reply by calling the model, running the tools it asks for and
// feeding the results back until the model answers.
package agent

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/llm"
	"github.com/tokamak-network/ai-tokamak/internal/prompts"
	"github.com/tokamak-network/ai-tokamak/internal/session"
	"github.com/tokamak-network/ai-tokamak/internal/tools"
)

// Fixed replies.
const (
	EndedMessage          = "대화를 종료합니다. 다시 대화하고 싶으시면 언제든지 말씀해주세요!"
	MaxIterationsMessage  = "죄송합니다, 처리 중 문제가 발생했습니다. Sorry, something went wrong while processing your request. Please try again."
	CircuitBreakerMessage = "죄송합니다, 도구 실행 중 오류가 반복되어 요청을 처리할 수 없습니다. Sorry, a tool kept failing so I could not complete your request. Please try again later."
)

// Defaults applied by New for unset Config fields.
const (
	DefaultMaxIterations = 10
	DefaultMaxHistory    = 20
	DefaultMaxTokens     = 4096
	DefaultTemperature   = 0.7
)

// circuitBreakerThreshold is the number of consecutive iterations with a
// failing tool that aborts the run.
const circuitBreakerThreshold = 3

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeDone          Outcome = "done"
	OutcomeError         Outcome = "error"
	OutcomeMaxIterations Outcome = "max_iterations"
	OutcomeCircuitBroken Outcome = "circuit_broken"
	OutcomeEnded         Outcome = "ended"
	OutcomeEmpty         Outcome = "empty"
	OutcomePanic         Outcome = "panic"
)

// PromptBuilder produces the system prompt for a user message.
type PromptBuilder interface {
	Build(message string) string
}

// ToolExecutor lists and runs tools. Execute never fails; errors come back
// as JSON results with an "error" key.
type ToolExecutor interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any) string
}

// Observer receives loop telemetry.
type Observer interface {
	RunFinished(outcome string, iterations int, elapsed time.Duration)
	ToolCalled(name string, failed bool)
	LLMRequest(model string, failed bool, inputTokens, outputTokens int)
	ReviewFinished(accepted bool)
}

type nopObserver struct{}

func (nopObserver) RunFinished(string, int, time.Duration) {}
func (nopObserver) ToolCalled(string, bool)                 {}
func (nopObserver) LLMRequest(string, bool, int, int)       {}
func (nopObserver) ReviewFinished(bool)                     {}

// Config holds the model parameters and limits of a Loop.
type Config struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
	MaxHistory    int

	// EnableReview turns on the Korean quality review of final replies.
	EnableReview bool
	// ReviewModel overrides Model for the review call.
	ReviewModel string
}

// DefaultConfig returns a Config with every default applied and review
// enabled.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
		MaxIterations: DefaultMaxIterations,
		MaxHistory:    DefaultMaxHistory,
		EnableReview:  true,
	}
}

// Loop is the agent execution loop. It is safe for concurrent use; each
// Run owns its own message list.
type Loop struct {
	llm      llm.Client
	tools    ToolExecutor
	prompts  PromptBuilder
	observer Observer
	logger   *slog.Logger
	cfg      Config
}

// Option configures a Loop.
type Option func(*Loop)

// WithTools sets the tool registry. Without one, tool calls from the model
// are ignored and its text is treated as the final answer.
func WithTools(t ToolExecutor) Option {
	return func(l *Loop) { l.tools = t }
}

// WithPrompts sets the system prompt builder.
func WithPrompts(p PromptBuilder) Option {
	return func(l *Loop) { l.prompts = p }
}

// WithObserver sets the telemetry sink.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a Loop. Zero MaxTokens, MaxIterations and MaxHistory take
// their defaults.
func New(client llm.Client, cfg Config, opts ...Option) *Loop {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}

	l := &Loop{
		llm:      client,
		cfg:      cfg,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.prompts == nil {
		l.prompts = prompts.NewBuilder()
	}
	if l.observer == nil {
		l.observer = nopObserver{}
	}
	return l
}

// RunOption adjusts a single Run.
type RunOption func(*runOptions)

type runOptions struct {
	skipReview bool
}

// WithSkipReview disables the Korean review for this run, for example
// when the user wrote in another language.
func WithSkipReview(skip bool) RunOption {
	return func(o *runOptions) { o.skipReview = skip }
}

// Run processes message in the context of sess and returns the reply.
// ok is false when there is nothing to send: blank input, a provider
// error, an empty model answer or a recovered panic.
//
// Run never writes the reply to the session; the caller does. The only
// session mutation is End when the model emits EndMarker.
func (l *Loop) Run(ctx context.Context, sess *session.Session, message string, opts ...RunOption) (reply string, ok bool) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	key := sessionKey(sess)
	start := time.Now()
	iterations := 0
	outcome := OutcomeEmpty
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("agent loop panic recovered",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			reply, ok = "", false
			outcome = OutcomePanic
		}
		l.observer.RunFinished(string(outcome), iterations, time.Since(start))
		l.logger.Debug("agent loop finished",
			"session", key,
			"outcome", outcome,
			"iterations", iterations,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}()

	if sess == nil {
		l.logger.Error("agent run without a session")
		outcome = OutcomeError
		return "", false
	}

	message = SanitizeInput(message)
	if strings.TrimSpace(message) == "" {
		return "", false
	}

	messages := l.buildMessages(sess, message)

	var defs []llm.ToolDefinition
	if l.tools != nil {
		defs = l.tools.Definitions()
	}
	toolCtx := tools.WithSessionKey(ctx, key)

	l.logger.Debug("agent loop started",
		"session", key,
		"messages", len(messages),
		"tools", len(defs),
	)

	consecutiveFailures := 0
	for iterations < l.cfg.MaxIterations {
		iterations++

		resp := l.chat(ctx, &llm.Request{
			Messages:    messages,
			Tools:       defs,
			Model:       l.cfg.Model,
			MaxTokens:   l.cfg.MaxTokens,
			Temperature: l.cfg.Temperature,
		})
		if resp.IsError() {
			l.logger.Error("LLM call failed",
				"session", key,
				"iteration", iterations,
				"content", resp.Content,
			)
			outcome = OutcomeError
			return "", false
		}

		if !resp.HasToolCalls() || l.tools == nil {
			reply, ok, outcome = l.finalize(ctx, sess, resp.Content, ro)
			return reply, ok
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		failed := false
		for _, tc := range resp.ToolCalls {
			name := tc.Function.Name
			l.logger.Debug("executing tool", "session", key, "tool", name, "id", tc.ID)

			result := l.tools.Execute(toolCtx, name, tc.Function.Arguments)
			isErr := tools.IsErrorResult(result)
			if isErr {
				failed = true
				l.logger.Warn("tool returned error", "session", key, "tool", name)
			}
			l.observer.ToolCalled(name, isErr)

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}

		if !failed {
			consecutiveFailures = 0
			continue
		}
		consecutiveFailures++
		if consecutiveFailures >= circuitBreakerThreshold {
			l.logger.Warn("circuit breaker tripped",
				"session", key,
				"consecutive_failures", consecutiveFailures,
			)
			outcome = OutcomeCircuitBroken
			return CircuitBreakerMessage, true
		}
	}

	l.logger.Warn("max iterations reached", "session", key, "max", l.cfg.MaxIterations)
	outcome = OutcomeMaxIterations
	return MaxIterationsMessage, true
}

// RunWithRetry calls Run up to maxRetries+1 times and returns the first
// reply. There is no backoff between attempts.
func (l *Loop) RunWithRetry(ctx context.Context, sess *session.Session, message string, maxRetries int, opts ...RunOption) (string, bool) {
	key := sessionKey(sess)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if reply, ok := l.Run(ctx, sess, message, opts...); ok {
			return reply, true
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < maxRetries {
			l.logger.Warn("agent run produced no reply, retrying",
				"session", key,
				"attempt", attempt+1,
				"max_retries", maxRetries,
			)
		}
	}
	return "", false
}

func sessionKey(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.Key()
}

// buildMessages assembles the system prompt, the sanitized history and the
// current message. A trailing history entry equal to the current message
// is dropped so callers may store the user message before running.
func (l *Loop) buildMessages(sess *session.Session, message string) []llm.Message {
	history := sess.History(l.cfg.MaxHistory)
	for i := range history {
		if history[i].Role == llm.RoleUser {
			history[i].Content = SanitizeInput(history[i].Content)
		}
	}
	if n := len(history); n > 0 && history[n-1].Role == llm.RoleUser && history[n-1].Content == message {
		history = history[:n-1]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: l.prompts.Build(message)})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages
}

// finalize post-processes the model's final text.
func (l *Loop) finalize(ctx context.Context, sess *session.Session, content string, ro runOptions) (string, bool, Outcome) {
	content = strings.TrimSpace(content)
	if content == "" {
		l.logger.Warn("model returned empty reply", "session", sess.Key())
		return "", false, OutcomeEmpty
	}

	if before, _, found := strings.Cut(content, EndMarker); found {
		l.logger.Info("conversation ended by agent", "session", sess.Key())
		sess.End()
		if before = strings.TrimSpace(before); before == "" {
			return EndedMessage, true, OutcomeEnded
		}
		return before, true, OutcomeEnded
	}

	if l.cfg.EnableReview && !ro.skipReview && ContainsHangul(content) {
		content = l.review(ctx, content)
	}
	return content, true, OutcomeDone
}

// chat calls the provider and records the request. A nil response is
// treated as a backend failure.
func (l *Loop) chat(ctx context.Context, req *llm.Request) *llm.Response {
	resp := l.llm.Chat(ctx, req)
	if resp == nil {
		resp = llm.ErrorResponse(req.Model)
	}
	l.observer.LLMRequest(req.Model, resp.IsError(), resp.InputTokens, resp.OutputTokens)
	l.logger.Log(ctx, llm.LevelTrace, "llm response",
		"model", req.Model,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"content", resp.Content,
	)
	return resp
}
