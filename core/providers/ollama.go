package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultModelCacheTTL bounds how long a discovered model list is reused.
const DefaultModelCacheTTL = 30 * time.Second

// OllamaClient talks to the local daemon's HTTP API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	models     *expirable.LRU[string, []string]
}

// NewOllamaClient creates a client for baseURL. A zero ttl uses DefaultModelCacheTTL;
// a negative ttl disables caching.
func NewOllamaClient(baseURL string, client *http.Client, ttl time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if client == nil {
		client = &http.Client{}
	}
	if ttl == 0 {
		ttl = DefaultModelCacheTTL
	}

	c := &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
	if ttl > 0 {
		c.models = expirable.NewLRU[string, []string](1, nil, ttl)
	}
	return c
}

func (c *OllamaClient) BaseURL() string {
	return c.baseURL
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of models the daemon has pulled.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	if c.models != nil {
		if cached, ok := c.models.Get(c.baseURL); ok {
			return append([]string(nil), cached...), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("ollama tags error %d: %s", res.StatusCode, string(b))
	}

	var tr ollamaTagsResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}

	names := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		names = append(names, m.Name)
	}

	if c.models != nil {
		c.models.Add(c.baseURL, names)
	}
	return append([]string(nil), names...), nil
}

// Chat API types

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (c *OllamaClient) chat(ctx context.Context, body ollamaChatRequest) (*ollamaChatResponse, error) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("ollama chat error %d: %s", res.StatusCode, string(b))
	}

	var cr ollamaChatResponse
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	return &cr, nil
}

// OllamaProvider implements Provider over the local daemon.
type OllamaProvider struct {
	client *OllamaClient
	config OllamaConfig
}

// NewOllamaProvider creates a provider for config.Model. If client is nil one
// is built from the config.
func NewOllamaProvider(config OllamaConfig, client *OllamaClient) (*OllamaProvider, error) {
	config.applyDefaults()
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaURL
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if client == nil {
		client = NewOllamaClient(config.BaseURL, config.HTTPClient, config.ModelCacheTTL)
	}

	return &OllamaProvider{client: client, config: config}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Model() string {
	return p.config.Model
}

// Complete performs a non-streaming /api/chat request
func (p *OllamaProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	body, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	cr, err := p.client.chat(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("ollama complete: %w", err)
	}

	return p.convertResponse(cr), nil
}

func (p *OllamaProvider) buildRequest(req *Request) (ollamaChatRequest, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	body := ollamaChatRequest{
		Model:   p.config.Model,
		Stream:  false,
		Options: map[string]any{"num_predict": maxTokens},
	}

	if req.Temperature != nil {
		body.Options["temperature"] = *req.Temperature
	} else if p.config.Temperature != nil {
		body.Options["temperature"] = *p.config.Temperature
	}

	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, ollamaMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, msg := range req.Messages {
		om := ollamaMessage{Role: string(msg.Role), Content: msg.Content}
		if msg.Role == RoleTool {
			om.ToolName = msg.Name
		}
		for _, tc := range msg.ToolCalls {
			args := json.RawMessage(tc.Arguments)
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			if !json.Valid(args) {
				return ollamaChatRequest{}, fmt.Errorf("ollama: tool call %s has invalid arguments", tc.ID)
			}
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaToolCallFunction{Name: tc.Name, Arguments: args},
			})
		}
		body.Messages = append(body.Messages, om)
	}

	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  ensureObjectType(tool.Parameters),
			},
		})
	}

	return body, nil
}

func (p *OllamaProvider) convertResponse(cr *ollamaChatResponse) *Response {
	response := &Response{
		Content: cr.Message.Content,
		Model:   cr.Model,
		Usage: Usage{
			InputTokens:  cr.PromptEvalCount,
			OutputTokens: cr.EvalCount,
			TotalTokens:  cr.PromptEvalCount + cr.EvalCount,
		},
	}

	switch cr.DoneReason {
	case "length":
		response.StopReason = StopReasonMaxTokens
	default:
		response.StopReason = StopReasonEndTurn
	}

	// The daemon does not assign call ids.
	for i, tc := range cr.Message.ToolCalls {
		args := string(tc.Function.Arguments)
		if args == "" || args == "null" {
			args = "{}"
		}
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	if len(response.ToolCalls) > 0 {
		response.StopReason = StopReasonToolUse
	}

	return response
}
