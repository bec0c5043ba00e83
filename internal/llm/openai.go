package llm

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenRouter, LiteLLM, vLLM, OpenAI itself).
type OpenAIClient struct {
	client       openai.Client
	defaultModel string
	logger       *slog.Logger
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // empty means the SDK default
	DefaultModel string
	HTTPClient   *http.Client
	MaxRetries   int
}

// NewOpenAIClient creates an OpenAI-compatible client.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy" // local proxies accept any key
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		logger:       logger.With("provider", "openai"),
	}
}

// Chat sends a non-streaming chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *Request) *Response {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    convertToOpenAI(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToOpenAI(req.Tools)
	}

	c.logger.Debug("sending chat request",
		"model", model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.Error("chat completion failed", "model", model, "error", err)
		return ErrorResponse(model)
	}
	if len(completion.Choices) == 0 {
		c.logger.Error("chat completion returned no choices", "model", model)
		return ErrorResponse(model)
	}

	c.logger.Log(ctx, LevelTrace, "chat completion payload", "raw", completion.RawJSON())

	choice := completion.Choices[0]
	raw := make([]RawToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		raw = append(raw, RawToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	calls, content := ExtractToolCalls(raw, choice.Message.Content)

	finish := string(choice.FinishReason)
	if finish == "" {
		finish = FinishReasonStop
	}

	return &Response{
		Content:      content,
		ToolCalls:    calls,
		FinishReason: finish,
		Model:        completion.Model,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}
}

// convertToOpenAI maps our messages onto the SDK's union params.
func convertToOpenAI(messages []Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case RoleUser:
			params = append(params, openai.UserMessage(m.Content))
		case RoleTool:
			params = append(params, openai.ToolMessage(m.Content, m.ToolCallID))
		case RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.ArgumentsJSON(),
					},
				})
			}
			params = append(params, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return params
}

// convertToolsToOpenAI converts tool definitions to function tools.
func convertToolsToOpenAI(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.ChatCompletionToolParam{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return result
}
