package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_TOKEN", "abc")
	path := writeFile(t, "port: 9000\ntoken: ${SAMPLE_TOKEN}\n")

	s := &sample{Name: "default", Port: 1}
	if err := Load(path, s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "default" || s.Port != 9000 || s.Token != "abc" {
		t.Errorf("got %+v", s)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "port: 9000\nprot: 1\n")
	err := Load(path, &sample{})
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	err := Load(path, &sample{})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "")
	s := &sample{Port: 8080}
	if err := Load(path, s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 8080 {
		t.Errorf("port = %d", s.Port)
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	s := &sample{Port: 8080}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), s)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}

	bad := &sample{}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), bad); err == nil {
		t.Fatal("defaults should still be validated")
	}
}
