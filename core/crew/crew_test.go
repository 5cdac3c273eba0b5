package crew

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/knowledge"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/skills"
	"github.com/adalundhe/crews/core/tools"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*providers.Response
	err       error
	requests  []*providers.Request
	onCall    func()
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Complete(_ context.Context, req *providers.Request) (*providers.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := *req
	snapshot.Messages = append([]providers.Message(nil), req.Messages...)
	p.requests = append(p.requests, &snapshot)

	if p.onCall != nil {
		p.onCall()
	}
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &providers.Response{Content: "default answer"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func text(s string) *providers.Response {
	return &providers.Response{Content: s, StopReason: providers.StopReasonEndTurn}
}

func toolCall(id, name, args string) *providers.Response {
	return &providers.Response{
		StopReason: providers.StopReasonToolUse,
		ToolCalls:  []providers.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) TaskStarted(_ string, task Task) {
	o.add("start:" + task.Name)
}

func (o *recordingObserver) TaskFinished(_ string, task Task, _ time.Duration, err error) {
	if err != nil {
		o.add("fail:" + task.Name)
		return
	}
	o.add("finish:" + task.Name)
}

func (o *recordingObserver) ToolInvoked(_, task, tool string, _ error) {
	o.add("tool:" + task + ":" + tool)
}

func (o *recordingObserver) add(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func echoSkill(calls *int) *skills.Skill {
	return skills.NewSkill("lookup").
		Description("Look something up").
		StringParam("query", "What to look up", true).
		Handler(func(_ context.Context, input json.RawMessage) (string, error) {
			*calls++
			var args struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return "", err
			}
			return "found: " + args.Query, nil
		}).
		Build()
}

func chainCrew(p providers.Provider) *Crew {
	role := &Role{Name: "Writer", Goal: "Write", Backstory: "A writer.", Provider: p}
	return &Crew{
		Kind:  "chain",
		Roles: []*Role{role},
		Tasks: []Task{
			{Name: "first", Description: "Step one", ExpectedOutput: "one", Role: "Writer", OutputFile: "chain/first.md"},
			{Name: "second", Description: "Step two", ExpectedOutput: "two", Role: "Writer", Context: []string{"first"}, OutputFile: "chain/second.md"},
			{Name: "third", Description: "Step three", ExpectedOutput: "three", Role: "Writer", Context: []string{"first", "second"}},
		},
	}
}

func TestRun_SequentialWithContext(t *testing.T) {
	p := &scriptedProvider{responses: []*providers.Response{text("alpha"), text("beta"), text("gamma")}}
	obs := &recordingObserver{}
	root := t.TempDir()

	res, err := NewRunner(RunnerConfig{OutputRoot: root, Observer: obs}).Run(context.Background(), chainCrew(p))
	require.NoError(t, err)

	assert.Equal(t, "gamma", res.Artifact)
	require.Len(t, res.Tasks, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{res.Tasks[0].Task, res.Tasks[1].Task, res.Tasks[2].Task})

	require.Len(t, p.requests, 3)
	assert.NotContains(t, p.requests[0].Messages[0].Content, "alpha")
	assert.Contains(t, p.requests[1].Messages[0].Content, "alpha")
	assert.Contains(t, p.requests[2].Messages[0].Content, "alpha")
	assert.Contains(t, p.requests[2].Messages[0].Content, "beta")
	assert.Contains(t, p.requests[0].SystemPrompt, "Your personal goal is: Write")

	data, err := os.ReadFile(filepath.Join(root, "chain", "second.md"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))
	assert.Empty(t, res.Tasks[2].File)

	assert.Equal(t, []string{
		"start:first", "finish:first",
		"start:second", "finish:second",
		"start:third", "finish:third",
	}, obs.events)
}

func TestRun_ToolLoop(t *testing.T) {
	calls := 0
	p := &scriptedProvider{responses: []*providers.Response{
		toolCall("call_1", "lookup", `{"query":"battery"}`),
		text("final report"),
	}}
	c := chainCrew(p)
	c.Roles[0].Skills = []*skills.Skill{echoSkill(&calls)}
	c.Tasks = c.Tasks[:1]
	obs := &recordingObserver{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	res, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir(), Observer: obs, Logger: logger}).Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "final report", res.Artifact)

	var toolLine string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "invoking tool") {
			toolLine = line
		}
	}
	require.NotEmpty(t, toolLine)
	assert.Equal(t, 1, strings.Count(toolLine, "task=first"))
	assert.Equal(t, 1, calls)

	require.Len(t, p.requests, 2)
	require.Len(t, p.requests[0].Tools, 1)
	assert.Equal(t, "lookup", p.requests[0].Tools[0].Name)

	msgs := p.requests[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, providers.RoleAssistant, msgs[1].Role)
	assert.Equal(t, providers.RoleTool, msgs[2].Role)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.Equal(t, "found: battery", msgs[2].Content)
	assert.Contains(t, obs.events, "tool:first:lookup")
}

func TestRun_ToolFailureAbortsWithoutArtifact(t *testing.T) {
	failing := skills.NewSkill("lookup").
		Description("Look something up").
		StringParam("query", "q", true).
		Handler(func(context.Context, json.RawMessage) (string, error) {
			return "", cerrors.New(cerrors.KindToolInvocation, "answer service returned 401")
		}).
		Build()

	p := &scriptedProvider{responses: []*providers.Response{toolCall("c1", "lookup", `{"query":"x"}`)}}
	c := chainCrew(p)
	c.Roles[0].Skills = []*skills.Skill{failing}
	root := t.TempDir()

	res, err := NewRunner(RunnerConfig{OutputRoot: root}).Run(context.Background(), c)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, cerrors.Is(err, cerrors.KindToolInvocation))
	assert.Contains(t, err.Error(), "task first")
	assert.Len(t, p.requests, 1)

	_, statErr := os.Stat(filepath.Join(root, "chain", "first.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_PlainToolErrorBecomesToolInvocation(t *testing.T) {
	failing := skills.NewSkill("lookup").
		Handler(func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("boom")
		}).
		Build()

	p := &scriptedProvider{responses: []*providers.Response{toolCall("c1", "lookup", "")}}
	c := chainCrew(p)
	c.Roles[0].Skills = []*skills.Skill{failing}

	_, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(context.Background(), c)
	assert.True(t, cerrors.Is(err, cerrors.KindToolInvocation))
}

func TestRun_UnknownToolIsReportedToModel(t *testing.T) {
	p := &scriptedProvider{responses: []*providers.Response{
		toolCall("c1", "search_web", `{}`),
		text("done"),
	}}
	c := chainCrew(p)
	c.Tasks = c.Tasks[:1]

	res, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Artifact)
	assert.Contains(t, p.requests[1].Messages[2].Content, "not available")
}

func TestRun_RejectedToolArgumentsAreReportedToModel(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"answer": "42"}`))
	}))
	defer srv.Close()

	p := &scriptedProvider{responses: []*providers.Response{
		toolCall("c1", tools.AnswerSkillName, `{"query": `),
		toolCall("c2", tools.AnswerSkillName, `{}`),
		toolCall("c3", tools.AnswerSkillName, `{"query":"meaning"}`),
		text("done"),
	}}
	c := chainCrew(p)
	c.Roles[0].Skills = []*skills.Skill{tools.NewAnswerTool("k", tools.AnswerOptions{Endpoint: srv.URL}).Skill()}
	c.Tasks = c.Tasks[:1]

	res, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Artifact)
	assert.Equal(t, 1, hits)

	require.Len(t, p.requests, 4)
	assert.Contains(t, p.requests[1].Messages[2].Content, "Error:")
	assert.Contains(t, p.requests[2].Messages[4].Content, "requires a query")
	assert.Equal(t, "Answer: 42\n\n", p.requests[3].Messages[6].Content)
}

func TestRun_MaxIterations(t *testing.T) {
	calls := 0
	var responses []*providers.Response
	for i := 0; i < 5; i++ {
		responses = append(responses, toolCall("c", "lookup", `{"query":"again"}`))
	}
	p := &scriptedProvider{responses: responses}
	c := chainCrew(p)
	c.Roles[0].Skills = []*skills.Skill{echoSkill(&calls)}

	_, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir(), MaxIterations: 3}).Run(context.Background(), c)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.KindPipelineExecution))
	assert.Equal(t, 3, calls)
}

func TestRun_ProviderErrorIsPipelineFailure(t *testing.T) {
	p := &scriptedProvider{err: errors.New("connection refused")}
	_, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(context.Background(), chainCrew(p))
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.KindPipelineExecution))
}

func TestRun_EmptyAnswerFails(t *testing.T) {
	p := &scriptedProvider{responses: []*providers.Response{text("  ")}}
	_, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(context.Background(), chainCrew(p))
	assert.True(t, cerrors.Is(err, cerrors.KindPipelineExecution))
}

func TestRun_PanicRecovered(t *testing.T) {
	p := &scriptedProvider{onCall: func() { panic("adapter bug") }}
	res, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(context.Background(), chainCrew(p))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.KindPipelineExecution))
	assert.Contains(t, err.Error(), "adapter bug")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{}
	_, err := NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(ctx, chainCrew(p))
	require.Error(t, err)
	assert.Empty(t, p.requests)
}

func TestRun_KnowledgeInSystemPrompt(t *testing.T) {
	set, err := knowledge.NewSet("practices", []knowledge.Document{knowledge.DefaultDocument()}, knowledge.Config{})
	require.NoError(t, err)
	defer set.Close()

	p := &scriptedProvider{responses: []*providers.Response{text("reqs")}}
	c := chainCrew(p)
	c.Roles[0].Knowledge = set
	c.Tasks = c.Tasks[:1]

	_, err = NewRunner(RunnerConfig{OutputRoot: t.TempDir()}).Run(context.Background(), c)
	require.NoError(t, err)
	assert.Contains(t, p.requests[0].SystemPrompt, "Reference material")
	assert.Contains(t, p.requests[0].SystemPrompt, "[requirements_best_practices.md]")
}

func TestCrewValidate(t *testing.T) {
	p := &scriptedProvider{}
	tests := []struct {
		name   string
		mutate func(*Crew)
		want   string
	}{
		{"unknown role", func(c *Crew) { c.Tasks[0].Role = "Nobody" }, "unknown role"},
		{"forward context", func(c *Crew) { c.Tasks[0].Context = []string{"second"} }, "not an earlier task"},
		{"escaping sink", func(c *Crew) { c.Tasks[0].OutputFile = "../x.md" }, "escapes"},
		{"absolute sink", func(c *Crew) { c.Tasks[0].OutputFile = "/tmp/x.md" }, "relative"},
		{"duplicate task", func(c *Crew) { c.Tasks[1].Name = "first"; c.Tasks[1].Context = nil }, "duplicate task"},
		{"no provider", func(c *Crew) { c.Roles[0].Provider = nil }, "no provider"},
		{"no tasks", func(c *Crew) { c.Tasks = nil }, "no tasks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := chainCrew(p)
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, cerrors.Is(err, cerrors.KindInvalidInput))
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}

	assert.NoError(t, chainCrew(p).Validate())
}
