package crew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/skills"
)

// DefaultMaxIterations bounds the model round trips spent on one task.
const DefaultMaxIterations = 15

// agent drives one role through one task.
type agent struct {
	crew          string
	role          *Role
	registry      *skills.Registry
	tools         []providers.Tool
	maxIterations int
	maxTokens     int
	logger        *slog.Logger
	observer      Observer
}

func newAgent(crew string, role *Role, maxIterations, maxTokens int, logger *slog.Logger, observer Observer) (*agent, error) {
	registry, err := skills.NewRegistry(role.Skills...)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindInvalidInput, fmt.Sprintf("role %s", role.Name), err)
	}

	tools := make([]providers.Tool, 0, registry.Len())
	for _, s := range registry.All() {
		tools = append(tools, providers.Tool{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters(),
		})
	}

	return &agent{
		crew:          crew,
		role:          role,
		registry:      registry,
		tools:         tools,
		maxIterations: maxIterations,
		maxTokens:     maxTokens,
		logger:        logger.With("role", role.Name),
		observer:      observer,
	}, nil
}

// execute runs the tool loop until the model answers without tool calls.
func (a *agent) execute(ctx context.Context, task Task, prior []TaskOutput) (string, error) {
	reference, err := a.reference(task)
	if err != nil {
		return "", err
	}

	req := &providers.Request{
		SystemPrompt: systemPrompt(a.role, reference),
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: taskPrompt(task, prior)},
		},
		MaxTokens: a.maxTokens,
		Tools:     a.tools,
	}

	for i := 0; i < a.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", cerrors.Wrap(cerrors.KindPipelineExecution, "run cancelled", err)
		}

		resp, err := a.role.Provider.Complete(ctx, req)
		if err != nil {
			if cerrors.KindOf(err) != cerrors.KindUnknown {
				return "", err
			}
			return "", cerrors.Wrap(cerrors.KindPipelineExecution,
				fmt.Sprintf("%s completion failed", a.role.Provider.Name()), err)
		}

		if len(resp.ToolCalls) == 0 {
			answer := strings.TrimSpace(resp.Content)
			if answer == "" {
				return "", cerrors.Newf(cerrors.KindPipelineExecution, "role %s returned an empty answer", a.role.Name)
			}
			return answer, nil
		}

		req.Messages = append(req.Messages, providers.Message{
			Role:      providers.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			msg, err := a.invoke(ctx, task, call)
			if err != nil {
				return "", err
			}
			req.Messages = append(req.Messages, msg)
		}
	}

	return "", cerrors.Newf(cerrors.KindPipelineExecution,
		"role %s did not produce a final answer within %d iterations", a.role.Name, a.maxIterations)
}

func (a *agent) reference(task Task) (string, error) {
	if a.role.Knowledge == nil {
		return "", nil
	}
	text, err := a.role.Knowledge.Context(knowledgeQuery(a.role, task))
	if err != nil {
		return "", cerrors.Wrap(cerrors.KindPipelineExecution, fmt.Sprintf("role %s knowledge", a.role.Name), err)
	}
	return text, nil
}

// invoke runs one tool call. A call to a tool the role does not hold, or one
// whose arguments the tool rejects, is reported back to the model; a failing
// tool request aborts the task.
func (a *agent) invoke(ctx context.Context, task Task, call providers.ToolCall) (providers.Message, error) {
	msg := providers.Message{
		Role:       providers.RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	if a.registry.Get(call.Name) == nil {
		a.logger.Warn("model called unknown tool", "tool", call.Name)
		msg.Content = fmt.Sprintf("Error: tool %q is not available. Answer with the information you have.", call.Name)
		return msg, nil
	}

	args := json.RawMessage(call.Arguments)
	if len(strings.TrimSpace(call.Arguments)) == 0 {
		args = json.RawMessage("{}")
	}

	a.logger.Info("invoking tool", "tool", call.Name)
	result := a.registry.Invoke(ctx, call.Name, args)
	a.observer.ToolInvoked(a.crew, task.Name, call.Name, result.Err)

	if !result.Success {
		err := result.Err
		if err == nil {
			err = errors.New(result.Error)
		}
		if cerrors.KindOf(err) == cerrors.KindInvalidInput {
			a.logger.Warn("tool rejected arguments", "tool", call.Name, "error", err)
			msg.Content = fmt.Sprintf("Error: %v. Fix the arguments and call the tool again.", err)
			return msg, nil
		}
		if cerrors.KindOf(err) == cerrors.KindUnknown {
			err = cerrors.Wrap(cerrors.KindToolInvocation, fmt.Sprintf("tool %s failed", call.Name), err)
		}
		return msg, err
	}

	msg.Content = result.Output
	return msg, nil
}
