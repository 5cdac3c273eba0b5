package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/crews/core/credentials"
	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/metrics"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/selection"
)

const report = "# Executive Summary\n- a\n\n# Key Findings\n- b\n\n# Analysis\n- c\n\n# Future Implications\n- d\n\n# Recommendations\n- e\n\n# Citations\n- f\n"

func emptyResolver(t *testing.T) *credentials.Resolver {
	t.Helper()
	return &credentials.Resolver{
		Path:   filepath.Join(t.TempDir(), "credentials.yaml"),
		Getenv: func(string) string { return "" },
	}
}

func fakeOllama(t *testing.T, chats *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
		case "/api/chat":
			chats.Add(1)
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Nil(t, body["tools"], "local runs carry no web tool")
			resp := map[string]any{
				"model":       "llama3:latest",
				"message":     map[string]any{"role": "assistant", "content": report},
				"done_reason": "stop",
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecute_OllamaResearch(t *testing.T) {
	var chats atomic.Int32
	srv := fakeOllama(t, &chats)
	ollama := providers.NewOllamaClient(srv.URL, nil, 0)

	sel, err := selection.NewSelector(selection.Config{Credentials: emptyResolver(t), Models: ollama})
	require.NoError(t, err)

	m := metrics.New()
	root := t.TempDir()
	o, err := New(Config{
		Selector:   sel,
		Providers:  providers.Options{Ollama: ollama},
		OutputRoot: root,
		Metrics:    m,
	})
	require.NoError(t, err)
	defer o.Close()

	s, err := o.Resolve(context.Background(), selection.Input{Provider: "ollama", Crew: "research_assistant", Prompt: "AI agents"})
	require.NoError(t, err)
	assert.False(t, s.WebSearch)
	assert.Equal(t, "llama3:latest", s.Model)

	res, err := o.Execute(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), chats.Load())
	assert.Equal(t, 6, strings.Count(res.Artifact, "\n# ")+boolInt(strings.HasPrefix(res.Artifact, "# ")))

	data, err := os.ReadFile(filepath.Join(root, "researcher", "research_report.md"))
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(report), string(data))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("research_assistant", "ollama", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("research_assistant", "research", "success")))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestExecute_AnswerFailureAbortsDesignThinking(t *testing.T) {
	var completions atomic.Int32
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		completions.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "ask_exa", "arguments": "{\"query\":\"user pain points\"}"}}]
			}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer llm.Close()

	exa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "exa-key", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer exa.Close()

	sel, err := selection.NewSelector(selection.Config{Credentials: emptyResolver(t)})
	require.NoError(t, err)

	m := metrics.New()
	root := t.TempDir()
	o, err := New(Config{
		Selector:   sel,
		Providers:  providers.Options{BaseURLs: map[selection.Provider]string{selection.ProviderOpenAI: llm.URL}},
		AnswerURL:  exa.URL,
		OutputRoot: root,
		Metrics:    m,
	})
	require.NoError(t, err)

	s, err := o.Resolve(context.Background(), selection.Input{
		Provider: "openai", Model: "GPT-4", Crew: "design_thinking", Prompt: "Improve AI tools",
		Credentials: map[string]string{credentials.OpenAI: "sk-test", credentials.Exa: "exa-key"},
	})
	require.NoError(t, err)
	assert.True(t, s.WebSearch)

	res, err := o.Execute(context.Background(), s, nil)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.KindToolInvocation))
	assert.Equal(t, int32(1), completions.Load(), "no later task may start")

	_, statErr := os.Stat(filepath.Join(root, "design_thinking", "user_research_report.md"))
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocationsTotal.WithLabelValues("ask_exa", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("design_thinking", "openai", "failure")))
}

func TestExecute_CodeExtractorUsesKnowledge(t *testing.T) {
	var prompts, systems []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
		case "/api/chat":
			var body struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if !assert.GreaterOrEqual(t, len(body.Messages), 2) {
				return
			}
			assert.Equal(t, "system", body.Messages[0].Role)
			systems = append(systems, body.Messages[0].Content)
			prompts = append(prompts, body.Messages[1].Content)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":   "llama3:latest",
				"message": map[string]any{"role": "assistant", "content": "REQ-1 The system shall balance cells."},
			})
		}
	}))
	defer srv.Close()
	ollama := providers.NewOllamaClient(srv.URL, nil, 0)

	sel, err := selection.NewSelector(selection.Config{Credentials: emptyResolver(t), Models: ollama})
	require.NoError(t, err)

	root := t.TempDir()
	o, err := New(Config{
		Selector:         sel,
		Providers:        providers.Options{Ollama: ollama},
		OutputRoot:       root,
		KnowledgeSources: []string{filepath.Join(t.TempDir(), "missing.pdf")},
	})
	require.NoError(t, err)
	defer o.Close()

	s, err := o.Resolve(context.Background(), selection.Input{
		Provider: "ollama", Crew: "code_extractor",
		Code: []byte("int main(void) { return 0; }\n"), CodeFileName: "bms.c",
	})
	require.NoError(t, err)

	res, err := o.Execute(context.Background(), s, nil)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 5)
	require.Len(t, prompts, 5)
	assert.Contains(t, prompts[0], "User Input: The attached code is for a Battery Management System")

	require.Len(t, systems, 5)
	for i, system := range systems {
		if i >= 3 {
			assert.Contains(t, system, "Reference material relevant to your work", "task %d", i+1)
		} else {
			assert.NotContains(t, system, "Reference material relevant to your work", "task %d", i+1)
		}
	}

	for _, f := range []string{"ast.json", "control_flow_analysis.md", "data_flow_analysis.md", "code_requirements.md", "validated_requirements.md"} {
		_, err := os.Stat(filepath.Join(root, "code_extractor", f))
		assert.NoError(t, err, f)
	}
}
