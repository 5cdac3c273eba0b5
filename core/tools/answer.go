// Package tools holds the external lookups that roles can call during a task.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/skills"
)

const (
	// DefaultAnswerURL is the Exa answer endpoint.
	DefaultAnswerURL = "https://api.exa.ai/answer"

	// AnswerSkillName is the tool name exposed to roles.
	AnswerSkillName = "ask_exa"
)

// AnswerOptions configures an AnswerTool.
type AnswerOptions struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   func(tool string, err error)
}

// AnswerTool asks the web answer service a question and formats the answer
// with its citations.
type AnswerTool struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
	observe  func(tool string, err error)
}

// NewAnswerTool binds apiKey to a new tool. The key is never read from the
// environment here.
func NewAnswerTool(apiKey string, opts AnswerOptions) *AnswerTool {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultAnswerURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AnswerTool{
		endpoint: opts.Endpoint,
		apiKey:   apiKey,
		client:   opts.HTTPClient,
		logger:   opts.Logger,
		observe:  opts.Observer,
	}
}

type answerRequest struct {
	Query string `json:"query"`
	Text  bool   `json:"text"`
}

// Citation is one source backing an answer.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type answerResponse struct {
	Answer    json.RawMessage `json:"answer"`
	Citations []Citation      `json:"citations"`
}

// Ask sends a single request. Failures are returned with kind
// ToolInvocationFailure and are not retried.
func (t *AnswerTool) Ask(ctx context.Context, query string) (string, error) {
	out, err := t.ask(ctx, query)
	if t.observe != nil {
		t.observe(AnswerSkillName, err)
	}
	return out, err
}

func (t *AnswerTool) ask(ctx context.Context, query string) (string, error) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(answerRequest{Query: query, Text: true}); err != nil {
		return "", cerrors.Wrap(cerrors.KindToolInvocation, "encode answer request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, buf)
	if err != nil {
		return "", cerrors.Wrap(cerrors.KindToolInvocation, "build answer request", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)

	res, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("answer request failed", "error", err)
		return "", cerrors.Wrap(cerrors.KindToolInvocation, "answer request", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", cerrors.Wrap(cerrors.KindToolInvocation, "read answer response", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		t.logger.Error("answer request returned error status",
			"status", res.StatusCode,
			"body", string(body))
		cerr := cerrors.Newf(cerrors.KindToolInvocation, "answer service returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		cerr.StatusCode = http.StatusBadGateway
		return "", cerr
	}

	var ar answerResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return "", cerrors.Wrap(cerrors.KindToolInvocation, "decode answer response", err)
	}
	if len(ar.Answer) == 0 {
		return "", cerrors.New(cerrors.KindToolInvocation, "answer response has no answer field")
	}

	return FormatAnswer(answerText(ar.Answer), ar.Citations), nil
}

// answerText renders the answer field, which is usually a string but may be
// structured JSON.
func answerText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// FormatAnswer renders the tool output returned to the model.
func FormatAnswer(answer string, citations []Citation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer: %s\n\n", answer)
	if len(citations) > 0 {
		b.WriteString("Citations:\n")
		for _, c := range citations {
			fmt.Fprintf(&b, "- %s (%s)\n", c.Title, c.URL)
		}
	}
	return b.String()
}

// Skill exposes the tool to roles.
func (t *AnswerTool) Skill() *skills.Skill {
	return skills.NewSkill(AnswerSkillName).
		Description("Ask Exa a question. A tool that asks Exa a question and returns the answer.").
		StringParam("query", "The question you want to ask Exa.", true).
		Handler(func(ctx context.Context, input json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", cerrors.Wrap(cerrors.KindInvalidInput, "decode ask_exa input", err)
			}
			if strings.TrimSpace(in.Query) == "" {
				return "", cerrors.New(cerrors.KindInvalidInput, "ask_exa requires a query")
			}
			return t.Ask(ctx, in.Query)
		}).
		Build()
}
