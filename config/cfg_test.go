package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if cfg.Epub.TOCDepth != 3 {
		t.Errorf("Default tocdepth = %d, want 3", cfg.Epub.TOCDepth)
	}
	if cfg.Epub.Metadata.Language != "en" {
		t.Errorf("Default language = %q, want \"en\"", cfg.Epub.Metadata.Language)
	}
	if cfg.Epub.Metadata.UID != "uid" {
		t.Errorf("Default uid = %q, want \"uid\"", cfg.Epub.Metadata.UID)
	}
	if !strings.HasPrefix(cfg.Epub.Metadata.Identifier, "urn:uuid:") {
		t.Errorf("Generated identifier = %q, want urn:uuid: prefix", cfg.Epub.Metadata.Identifier)
	}
	if cfg.Epub.Metadata.Scheme != "URN" {
		t.Errorf("Generated identifier scheme = %q, want \"URN\"", cfg.Epub.Metadata.Scheme)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
epub:
  basename: "manual"
  tocdepth: 2
  fix_zip: true
  metadata:
    title: "Project Manual"
    author: "Docs Team"
    language: "de"
    identifier: "urn:isbn:9780000000001"
    scheme: "ISBN"
  pre_files:
    - file: "cover.html"
      title: "Cover"
  exclude_files: ["search.html"]
logging:
  console:
    level: normal
  file:
    level: debug
    destination: /tmp/test.log
    mode: append
reporting:
  destination: /tmp/test-report.zip
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Epub.Basename != "manual" {
		t.Errorf("Basename = %q, want \"manual\"", cfg.Epub.Basename)
	}
	if cfg.Epub.TOCDepth != 2 {
		t.Errorf("TOCDepth = %d, want 2", cfg.Epub.TOCDepth)
	}
	if !cfg.Epub.FixZip {
		t.Error("Expected FixZip to be true")
	}
	if cfg.Epub.Metadata.Title != "Project Manual" {
		t.Errorf("Title = %q, want \"Project Manual\"", cfg.Epub.Metadata.Title)
	}
	if cfg.Epub.Metadata.Identifier != "urn:isbn:9780000000001" {
		t.Errorf("Identifier = %q, configured value should not be replaced", cfg.Epub.Metadata.Identifier)
	}
	if cfg.Epub.Metadata.Scheme != "ISBN" {
		t.Errorf("Scheme = %q, want \"ISBN\"", cfg.Epub.Metadata.Scheme)
	}
	if len(cfg.Epub.PreFiles) != 1 || cfg.Epub.PreFiles[0].File != "cover.html" {
		t.Errorf("PreFiles = %v, want single cover.html entry", cfg.Epub.PreFiles)
	}
	if len(cfg.Epub.ExcludeFiles) != 1 || cfg.Epub.ExcludeFiles[0] != "search.html" {
		t.Errorf("ExcludeFiles = %v, want [search.html]", cfg.Epub.ExcludeFiles)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_UnknownFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "unknown.yaml")

	configWithUnknown := `version: 1
unknown_field: value
epub:
  fix_zip: true
`

	if err := os.WriteFile(configPath, []byte(configWithUnknown), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for unknown fields")
	}
}

func TestLoadConfiguration_ValidationError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_values.yaml")

	tests := []struct {
		name    string
		content string
	}{
		{"bad version", "version: 2\n"},
		{"tocdepth too large", "version: 1\nepub:\n  tocdepth: 9\n"},
		{"pre file without title", "version: 1\nepub:\n  pre_files:\n    - file: \"cover.html\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	cfg := &Config{}
	_, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("Dump() returned empty data")
	}

	// Verify we can load it back
	cfg2 := &Config{}
	if _, err = unmarshalConfig(data, cfg2, false); err != nil {
		t.Errorf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Epub.TOCDepth != cfg.Epub.TOCDepth {
		t.Errorf("TOCDepth mismatch after dump/load: got %d, want %d", cfg2.Epub.TOCDepth, cfg.Epub.TOCDepth)
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	// Partial config that only overrides some values
	partialConfig := `version: 1
epub:
  metadata:
    title: "Overridden"
`

	if err := os.WriteFile(configPath, []byte(partialConfig), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Epub.Metadata.Title != "Overridden" {
		t.Errorf("Title = %q, want value from config file", cfg.Epub.Metadata.Title)
	}
	if cfg.Epub.TOCDepth != 3 {
		t.Errorf("TOCDepth = %d, unspecified field should keep default", cfg.Epub.TOCDepth)
	}
}
