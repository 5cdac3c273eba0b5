package config

import (
	"testing"
	"time"
)

func TestOverlaySetFieldsOnly(t *testing.T) {
	dst := DefaultConfig()
	src := &Config{
		Server: ServerConfig{Addr: ":7000"},
		Crew:   CrewConfig{MaxIterations: 3},
	}

	Overlay(dst, src)

	if dst.Server.Addr != ":7000" {
		t.Errorf("Server.Addr: got %s, want :7000", dst.Server.Addr)
	}
	if dst.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout: got %v, zero value shouldn't override", dst.Server.ReadTimeout)
	}
	if dst.Crew.MaxIterations != 3 {
		t.Errorf("MaxIterations: got %d, want 3", dst.Crew.MaxIterations)
	}
	if dst.Crew.OutputDir != "output" {
		t.Errorf("OutputDir: got %s, want output", dst.Crew.OutputDir)
	}
}

func TestOverlayMapsMergeByKey(t *testing.T) {
	dst := DefaultConfig()
	dst.Providers.BaseURLs = map[string]string{"openai": "http://a", "gemini": "http://g"}
	src := &Config{Providers: ProvidersConfig{BaseURLs: map[string]string{"openai": "http://b"}}}

	Overlay(dst, src)

	if dst.Providers.BaseURLs["openai"] != "http://b" {
		t.Errorf("openai: got %s, want http://b", dst.Providers.BaseURLs["openai"])
	}
	if dst.Providers.BaseURLs["gemini"] != "http://g" {
		t.Errorf("gemini: got %s, want http://g", dst.Providers.BaseURLs["gemini"])
	}
}

func TestOverlaySlicesReplace(t *testing.T) {
	dst := DefaultConfig()

	Overlay(dst, &Config{})
	if len(dst.Upload.Patterns) != 2 {
		t.Errorf("empty slice shouldn't override, got %v", dst.Upload.Patterns)
	}

	Overlay(dst, &Config{Upload: UploadConfig{Patterns: []string{"*.c"}}})
	if len(dst.Upload.Patterns) != 1 || dst.Upload.Patterns[0] != "*.c" {
		t.Errorf("Patterns: got %v, want [*.c]", dst.Upload.Patterns)
	}
}

func TestOverlayNil(t *testing.T) {
	dst := DefaultConfig()
	Overlay(dst, nil)
	Overlay(nil, dst)
	if dst.Server.Addr != ":8080" {
		t.Errorf("nil overlay changed dst")
	}
}
