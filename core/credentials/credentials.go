// Package credentials resolves API keys for providers and tools into an
// immutable per-run snapshot. Keys are never written to the process
// environment.
package credentials

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
	Exa       = "exa"
)

var envKeys = map[string]string{
	OpenAI:    "OPENAI_API_KEY",
	Anthropic: "ANTHROPIC_API_KEY",
	Gemini:    "GEMINI_API_KEY",
	Exa:       "EXA_API_KEY",
}

// Known returns the credential names this module understands, sorted.
func Known() []string {
	names := make([]string, 0, len(envKeys))
	for name := range envKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnown reports whether name is a recognised credential name.
func IsKnown(name string) bool {
	_, ok := envKeys[name]
	return ok
}

// EnvKey returns the environment variable consulted for name.
func EnvKey(name string) string {
	return envKeys[name]
}

// Set is an immutable snapshot of resolved keys.
type Set struct {
	keys map[string]string
}

// NewSet copies m, dropping blank values.
func NewSet(m map[string]string) Set {
	keys := make(map[string]string, len(m))
	for name, key := range m {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys[strings.ToLower(name)] = key
	}
	return Set{keys: keys}
}

func (s Set) Get(name string) string {
	return s.keys[name]
}

func (s Set) Has(name string) bool {
	return s.keys[name] != ""
}

// Names returns the names that carry a key, sorted.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the subset of names with no key, in the order given.
func (s Set) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !s.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Masked returns a copy safe for logs: every key reduced to its last four characters.
func (s Set) Masked() map[string]string {
	out := make(map[string]string, len(s.keys))
	for name, key := range s.keys {
		out[name] = mask(key)
	}
	return out
}

func mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// Resolver looks keys up in the environment and then the credentials file.
type Resolver struct {
	Path   string
	Getenv func(string) string
}

// NewResolver returns a resolver over the process environment and DefaultPath.
func NewResolver() *Resolver {
	return &Resolver{
		Path:   DefaultPath(),
		Getenv: os.Getenv,
	}
}

// Resolve returns the key for name, or an empty string when none is configured.
func (r *Resolver) Resolve(name string) (string, error) {
	if key := r.fromEnv(name); key != "" {
		return key, nil
	}

	stored, err := Load(r.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stored[name]), nil
}

// Has reports whether a key for name resolves from env or file.
func (r *Resolver) Has(name string) bool {
	key, err := r.Resolve(name)
	return err == nil && key != ""
}

// Snapshot builds a Set for names. Overrides supplied with the request take
// precedence over the environment, which takes precedence over the file.
func (r *Resolver) Snapshot(overrides map[string]string, names ...string) (Set, error) {
	if len(names) == 0 {
		names = Known()
	}

	resolved := make(map[string]string, len(names))
	var stored map[string]string

	for _, name := range names {
		if key := strings.TrimSpace(overrides[name]); key != "" {
			resolved[name] = key
			continue
		}
		if key := r.fromEnv(name); key != "" {
			resolved[name] = key
			continue
		}
		if stored == nil {
			var err error
			stored, err = Load(r.Path)
			if err != nil {
				return Set{}, fmt.Errorf("snapshot credentials: %w", err)
			}
		}
		resolved[name] = stored[name]
	}

	return NewSet(resolved), nil
}

func (r *Resolver) fromEnv(name string) string {
	envKey, ok := envKeys[name]
	if !ok {
		return ""
	}
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return strings.TrimSpace(getenv(envKey))
}
