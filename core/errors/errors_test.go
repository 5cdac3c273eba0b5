package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindMissingCredential, "missing_credential"},
		{KindNoLocalModels, "no_local_models_available"},
		{KindToolInvocation, "tool_invocation_failure"},
		{KindPipelineExecution, "pipeline_execution_failure"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestCrewError_IsMatchesKind(t *testing.T) {
	err := New(KindToolInvocation, "exa answer request failed")
	wrapped := fmt.Errorf("task empathize: %w", err)

	assert.True(t, errors.Is(wrapped, ErrToolInvocation))
	assert.False(t, errors.Is(wrapped, ErrPipelineExecution))
	assert.Equal(t, KindToolInvocation, KindOf(wrapped))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(KindPipelineExecution, "noop", nil))

	base := errors.New("connection refused")
	err := Wrap(KindToolInvocation, "exa request", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "[tool_invocation_failure] exa request: connection refused", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(New(KindMissingCredential, "x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(KindUnsupportedProvider, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))

	custom := &CrewError{Kind: KindToolInvocation, StatusCode: http.StatusTooManyRequests}
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(custom))
}

func TestUserMessage(t *testing.T) {
	t.Run("missing credential lists names", func(t *testing.T) {
		err := New(KindMissingCredential, "missing").With("missing", "openai,exa")
		assert.Equal(t,
			"⚠️ Please enter your API keys in the sidebar to get started (missing: exa, openai)",
			UserMessage(err))
	})

	t.Run("no local models", func(t *testing.T) {
		msg := UserMessage(New(KindNoLocalModels, "none"))
		assert.Contains(t, msg, "No Ollama models found")
	})

	t.Run("blocking input errors use their message", func(t *testing.T) {
		msg := UserMessage(New(KindUnsupportedProvider, `unsupported provider "groq"`))
		assert.Equal(t, `⚠️ unsupported provider "groq"`, msg)
	})

	t.Run("pipeline failures are prefixed", func(t *testing.T) {
		msg := UserMessage(Wrap(KindPipelineExecution, "task parse_code", errors.New("boom")))
		assert.Equal(t, "An error occurred: [pipeline_execution_failure] task parse_code: boom", msg)
	})

	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, UserMessage(nil))
	})
}
