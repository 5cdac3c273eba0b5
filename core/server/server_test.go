package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/crews/core/credentials"
	"github.com/adalundhe/crews/core/metrics"
	"github.com/adalundhe/crews/core/orchestrator"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/selection"
	"github.com/adalundhe/crews/core/session"
)

const report = "# Executive Summary\n- a\n\n# Key Findings\n- b\n\n# Analysis\n- c\n\n# Future Implications\n- d\n\n# Recommendations\n- e\n\n# Citations\n- f\n"

type harness struct {
	server   *httptest.Server
	sessions *session.Manager
	release  chan struct{}
}

// newHarness wires the full stack over a fake Ollama daemon. Chat requests
// block until release is closed when gated is true.
func newHarness(t *testing.T, gated bool) *harness {
	t.Helper()

	release := make(chan struct{})
	if !gated {
		close(release)
	}

	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
		case "/api/chat":
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":   "llama3:latest",
				"message": map[string]any{"role": "assistant", "content": report},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(daemon.Close)

	ollama := providers.NewOllamaClient(daemon.URL, nil, 0)
	resolver := &credentials.Resolver{
		Path:   filepath.Join(t.TempDir(), "credentials.yaml"),
		Getenv: func(string) string { return "" },
	}
	sel, err := selection.NewSelector(selection.Config{Credentials: resolver, Models: ollama})
	require.NoError(t, err)

	m := metrics.New()
	orch, err := orchestrator.New(orchestrator.Config{
		Selector:   sel,
		Providers:  providers.Options{Ollama: ollama},
		OutputRoot: t.TempDir(),
		Metrics:    m,
	})
	require.NoError(t, err)

	sessions, err := session.NewManager(session.Config{LogLines: 50})
	require.NoError(t, err)

	srv, err := New(Config{
		Orchestrator: orch,
		Sessions:     sessions,
		Models:       ollama,
		Credentials:  resolver,
		Metrics:      m,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sessions.Shutdown(ctx)
		ts.Close()
		_ = orch.Close()
	})

	h := &harness{server: ts, sessions: sessions, release: release}
	if gated {
		t.Cleanup(h.open)
	}
	return h
}

func (h *harness) open() {
	select {
	case <-h.release:
	default:
		close(h.release)
	}
}

func (h *harness) postJSON(t *testing.T, body any, cookie *http.Cookie) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/api/runs", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func (h *harness) wait(t *testing.T, id string) *session.Run {
	t.Helper()
	run, err := h.sessions.Run(id)
	require.NoError(t, err)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	return run
}

var researchRun = map[string]any{"crew": "research_assistant", "provider": "ollama", "prompt": "AI agents"}

func TestCatalogEndpoints(t *testing.T) {
	h := newHarness(t, false)

	resp, err := http.Get(h.server.URL + "/api/crews")
	require.NoError(t, err)
	defer resp.Body.Close()
	crews := decode[[]crewInfo](t, resp)
	require.Len(t, crews, 3)
	assert.Equal(t, "code_extractor", crews[2].ID)
	assert.True(t, crews[2].NeedsCode)
	assert.Equal(t, "code_requirements.md", crews[2].DownloadName)

	resp, err = http.Get(h.server.URL + "/api/providers")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := decode[struct {
		Providers  []providerInfo `json:"providers"`
		ExaPresent bool           `json:"exa_present"`
	}](t, resp)
	require.NotEmpty(t, body.Providers)
	assert.False(t, body.ExaPresent)
	for _, p := range body.Providers {
		if p.ID == "openai" {
			assert.Equal(t, credentials.OpenAI, p.Credential)
			assert.False(t, p.CredentialPresent)
			assert.Contains(t, p.Models, "gpt-4o")
		}
	}

	resp, err = http.Get(h.server.URL + "/api/providers/ollama/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	models := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{"llama3:latest"}, models["models"])
}

func TestCreateRun_MissingCredential(t *testing.T) {
	h := newHarness(t, false)

	resp := h.postJSON(t, map[string]any{"crew": "research_assistant", "provider": "openai"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, "missing_credential", body.Kind)
	assert.Contains(t, body.Error, "Please enter your API keys")
	assert.Equal(t, 0, h.sessions.Active())
}

func TestCreateRun_CompletesAndServesArtifact(t *testing.T) {
	h := newHarness(t, false)

	resp := h.postJSON(t, researchRun, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, sessionCookie(resp))

	created := decode[map[string]string](t, resp)
	assert.Contains(t, created["notice"], "Web search is unavailable")
	run := h.wait(t, created["run_id"])
	require.Equal(t, session.StateCompleted, run.State())

	status, err := http.Get(h.server.URL + "/api/runs/" + run.ID)
	require.NoError(t, err)
	defer status.Body.Close()
	snap := decode[session.Snapshot](t, status)
	assert.Equal(t, "completed", snap.State)
	assert.Equal(t, strings.TrimSpace(report), snap.Artifact)

	md, err := http.Get(h.server.URL + "/api/runs/" + run.ID + "/artifact")
	require.NoError(t, err)
	defer md.Body.Close()
	assert.Equal(t, "text/markdown; charset=utf-8", md.Header.Get("Content-Type"))
	assert.Contains(t, md.Header.Get("Content-Disposition"), "research_report.md")
	data, _ := io.ReadAll(md.Body)
	assert.Equal(t, strings.TrimSpace(report), string(data))

	page, err := http.Get(h.server.URL + "/api/runs/" + run.ID + "/artifact.html")
	require.NoError(t, err)
	defer page.Body.Close()
	html, _ := io.ReadAll(page.Body)
	assert.Contains(t, string(html), "<h1>Executive Summary</h1>")
}

func TestCreateRun_ConflictWhileRunning(t *testing.T) {
	h := newHarness(t, true)

	first := h.postJSON(t, researchRun, nil)
	require.Equal(t, http.StatusAccepted, first.StatusCode)
	cookie := sessionCookie(first)
	require.NotNil(t, cookie)
	id := decode[map[string]string](t, first)["run_id"]

	second := h.postJSON(t, researchRun, cookie)
	assert.Equal(t, http.StatusConflict, second.StatusCode)

	artifact, err := http.Get(h.server.URL + "/api/runs/" + id + "/artifact")
	require.NoError(t, err)
	defer artifact.Body.Close()
	assert.Equal(t, http.StatusConflict, artifact.StatusCode)

	h.open()
	h.wait(t, id)

	third := h.postJSON(t, researchRun, cookie)
	assert.Equal(t, http.StatusAccepted, third.StatusCode)
	h.wait(t, decode[map[string]string](t, third)["run_id"])
}

func TestCreateRun_RejectsUnsupportedUpload(t *testing.T) {
	h := newHarness(t, false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("crew", "code_extractor"))
	require.NoError(t, mw.WriteField("provider", "ollama"))
	fw, err := mw.CreateFormFile("code", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("int main(void) { return 0; }"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(h.server.URL+"/api/runs", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "invalid_input", body.Kind)
	assert.Contains(t, body.Error, "notes.txt")
}

func TestCreateRun_MalformedJSON(t *testing.T) {
	h := newHarness(t, false)
	resp, err := http.Post(h.server.URL+"/api/runs", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRun_NotFound(t *testing.T) {
	h := newHarness(t, false)
	resp, err := http.Get(h.server.URL + "/api/runs/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunStream(t *testing.T) {
	h := newHarness(t, true)

	resp := h.postJSON(t, researchRun, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := decode[map[string]string](t, resp)["run_id"]

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/runs/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	h.open()

	var frames []Frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		frames = append(frames, f)
		if f.Type == "status" {
			break
		}
	}

	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, "status", last.Type)
	status, ok := last.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "completed", status["state"])

	var logged []string
	for _, f := range frames[:len(frames)-1] {
		assert.Equal(t, "log", f.Type)
		logged = append(logged, f.Data.(string))
	}
	assert.Contains(t, strings.Join(logged, "\n"), "crew started")
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, false)

	resp, err := http.Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	index, err := http.Get(h.server.URL + "/")
	require.NoError(t, err)
	defer index.Body.Close()
	page, _ := io.ReadAll(index.Body)
	assert.Contains(t, string(page), "<title>Crews</title>")

	m, err := http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	text, _ := io.ReadAll(m.Body)
	assert.Contains(t, string(text), "crews_http_requests_total")
}
