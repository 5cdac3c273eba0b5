package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestSnapshotPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, Save(path, OpenAI, "file-openai"))
	require.NoError(t, Save(path, Exa, "file-exa"))
	require.NoError(t, Save(path, Gemini, "file-gemini"))

	r := &Resolver{
		Path: path,
		Getenv: fakeEnv(map[string]string{
			"OPENAI_API_KEY": "env-openai",
			"EXA_API_KEY":    "env-exa",
		}),
	}

	set, err := r.Snapshot(map[string]string{OpenAI: "request-openai", Anthropic: "  "})
	require.NoError(t, err)

	assert.Equal(t, "request-openai", set.Get(OpenAI))
	assert.Equal(t, "env-exa", set.Get(Exa))
	assert.Equal(t, "file-gemini", set.Get(Gemini))
	assert.False(t, set.Has(Anthropic))
	assert.Equal(t, []string{Anthropic}, set.Missing(Anthropic, OpenAI))
}

func TestSnapshotIsImmutable(t *testing.T) {
	overrides := map[string]string{Exa: "k1"}
	r := &Resolver{Getenv: fakeEnv(nil)}

	set, err := r.Snapshot(overrides, Exa)
	require.NoError(t, err)

	overrides[Exa] = "k2"
	assert.Equal(t, "k1", set.Get(Exa))
}

func TestSnapshotDoesNotTouchEnvironment(t *testing.T) {
	t.Setenv("EXA_API_KEY", "")
	r := &Resolver{Getenv: os.Getenv}

	_, err := r.Snapshot(map[string]string{Exa: "per-run"}, Exa)
	require.NoError(t, err)
	assert.Empty(t, os.Getenv("EXA_API_KEY"))
}

func TestSaveAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")

	require.NoError(t, Save(path, Anthropic, "sk-ant-123"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	creds, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-123", creds[Anthropic])

	removed, err := Remove(path, Anthropic)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = Remove(path, Anthropic)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLoadMissingFile(t *testing.T) {
	creds, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials: [oops"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMasked(t *testing.T) {
	set := NewSet(map[string]string{OpenAI: "sk-abcdefgh", Exa: "abc"})
	assert.Equal(t, map[string]string{OpenAI: "****efgh", Exa: "****"}, set.Masked())
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{OpenAI, "OPENAI_API_KEY"},
		{Anthropic, "ANTHROPIC_API_KEY"},
		{Gemini, "GEMINI_API_KEY"},
		{Exa, "EXA_API_KEY"},
		{"ollama", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvKey(tt.name); got != tt.want {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
