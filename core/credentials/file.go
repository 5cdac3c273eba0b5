package credentials

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type credentialsFile struct {
	Credentials map[string]string `yaml:"credentials"`
}

// DefaultPath returns ~/.crews/credentials.yaml, or "" when HOME is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".crews", "credentials.yaml")
}

// Load reads the credentials file. A missing file yields an empty map.
func Load(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var file credentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if file.Credentials == nil {
		return map[string]string{}, nil
	}
	return file.Credentials, nil
}

// Save stores key under name, creating the directory 0700 and the file 0600.
func Save(path, name, key string) error {
	creds, err := Load(path)
	if err != nil {
		return err
	}
	creds[name] = key
	return write(path, creds)
}

// Remove deletes name from the file. It reports whether an entry existed.
func Remove(path, name string) (bool, error) {
	creds, err := Load(path)
	if err != nil {
		return false, err
	}
	if _, ok := creds[name]; !ok {
		return false, nil
	}
	delete(creds, name)
	return true, write(path, creds)
}

func write(path string, creds map[string]string) error {
	if path == "" {
		return fmt.Errorf("could not determine credentials path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := yaml.Marshal(&credentialsFile{Credentials: creds})
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}
