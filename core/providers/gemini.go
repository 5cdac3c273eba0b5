package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider for Google's Gemini API
type GeminiProvider struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiProvider creates a Gemini API client. No request is made.
func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Model() string {
	return p.config.Model
}

// Complete performs a non-streaming generateContent request
func (p *GeminiProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	contents, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, p.buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini complete: %w", err)
	}

	return p.convertResponse(resp)
}

func (p *GeminiProvider) buildConfig(req *Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	} else if p.config.Temperature != nil {
		t := float32(*p.config.Temperature)
		cfg.Temperature = &t
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, tool := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: ensureObjectType(tool.Parameters),
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return cfg
}

func (p *GeminiProvider) convertMessages(messages []Message) ([]*genai.Content, error) {
	result := make([]*genai.Content, 0, len(messages))
	var pending []*genai.Part

	flush := func() {
		if len(pending) > 0 {
			result = append(result, &genai.Content{Role: string(genai.RoleUser), Parts: pending})
			pending = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == RoleTool {
			pending = append(pending, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: map[string]any{"output": msg.Content},
				},
			})
			continue
		}
		flush()

		switch msg.Role {
		case RoleUser, RoleSystem:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, fmt.Errorf("gemini: tool call %s has invalid arguments: %w", tc.ID, err)
					}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
				})
			}
			result = append(result, &genai.Content{Role: string(genai.RoleModel), Parts: parts})
		}
	}
	flush()

	return result, nil
}

func (p *GeminiProvider) convertResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return &Response{Model: p.config.Model, StopReason: StopReasonError}, nil
	}

	response := &Response{
		Content:    resp.Text(),
		Model:      p.config.Model,
		StopReason: p.convertFinishReason(resp.Candidates[0].FinishReason),
	}

	if resp.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for _, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("gemini: encode arguments for %s: %w", fc.Name, err)
		}
		id := fc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        id,
			Name:      fc.Name,
			Arguments: string(args),
		})
	}
	if len(response.ToolCalls) > 0 {
		response.StopReason = StopReasonToolUse
	}

	return response, nil
}

func (p *GeminiProvider) convertFinishReason(reason genai.FinishReason) StopReason {
	switch reason {
	case genai.FinishReasonMaxTokens:
		return StopReasonMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return StopReasonError
	default:
		return StopReasonEndTurn
	}
}
