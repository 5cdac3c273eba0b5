package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider implements Provider for OpenAI chat models
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIProvider creates a new OpenAI provider with the given configuration
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithHTTPClient(config.HTTPClient),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client: &client,
		config: config,
	}, nil
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Model() string {
	return p.config.Model
}

// Complete performs a non-streaming chat completion request
func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	params := p.buildParams(req)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai complete: %w", err)
	}

	return p.convertResponse(completion), nil
}

// legacyReasoningModel reports models that accept neither system nor
// developer messages.
func legacyReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1-mini") || strings.HasPrefix(model, "o1-preview")
}

func reasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}

func (p *OpenAIProvider) buildParams(req *Request) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(p.config.Model),
		Messages:            p.convertMessages(req.Messages, req.SystemPrompt),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}

	if !reasoningModel(p.config.Model) {
		if req.Temperature != nil {
			params.Temperature = openai.Float(*req.Temperature)
		} else if p.config.Temperature != nil {
			params.Temperature = openai.Float(*p.config.Temperature)
		}
	}

	if len(req.Tools) > 0 {
		params.Tools = p.convertTools(req.Tools)
	}

	return params
}

func (p *OpenAIProvider) convertMessages(messages []Message, systemPrompt string) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)

	model := p.config.Model
	inlineSystem := legacyReasoningModel(model)

	if systemPrompt != "" && !inlineSystem {
		if reasoningModel(model) {
			result = append(result, openai.DeveloperMessage(systemPrompt))
		} else {
			result = append(result, openai.SystemMessage(systemPrompt))
		}
	}

	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleUser:
			content := msg.Content
			if inlineSystem && systemPrompt != "" && i == 0 {
				content = systemPrompt + "\n\n" + content
			}
			result = append(result, openai.UserMessage(content))
		case RoleAssistant:
			result = append(result, p.convertAssistant(msg))
		case RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return result
}

func (p *OpenAIProvider) convertAssistant(msg Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}

	assistant := openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		assistant.Content.OfString = openai.String(msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func (p *OpenAIProvider) convertTools(tools []Tool) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: shared.FunctionParameters(ensureObjectType(tool.Parameters)),
		}
		if tool.Description != "" {
			fn.Description = openai.String(tool.Description)
		}
		result[i] = openai.ChatCompletionToolParam{Function: fn}
	}
	return result
}

func (p *OpenAIProvider) convertResponse(completion *openai.ChatCompletion) *Response {
	if completion == nil || len(completion.Choices) == 0 {
		return &Response{StopReason: StopReasonError}
	}

	choice := completion.Choices[0]
	response := &Response{
		Content:    choice.Message.Content,
		Model:      completion.Model,
		StopReason: p.convertFinishReason(choice.FinishReason),
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return response
}

func (p *OpenAIProvider) convertFinishReason(reason string) StopReason {
	switch reason {
	case "length":
		return StopReasonMaxTokens
	case "tool_calls", "function_call":
		return StopReasonToolUse
	case "content_filter":
		return StopReasonError
	default:
		return StopReasonEndTurn
	}
}
