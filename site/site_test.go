package site

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMeta(t *testing.T, dir, siteYAML, doctree string) {
	t.Helper()
	meta := filepath.Join(dir, MetaDir)
	if err := os.MkdirAll(meta, 0755); err != nil {
		t.Fatalf("Failed to create metadata directory: %v", err)
	}
	if len(siteYAML) > 0 {
		if err := os.WriteFile(filepath.Join(meta, siteFile), []byte(siteYAML), 0644); err != nil {
			t.Fatalf("Failed to write site description: %v", err)
		}
	}
	if len(doctree) > 0 {
		if err := os.WriteFile(filepath.Join(meta, doctreeFile), []byte(doctree), 0644); err != nil {
			t.Fatalf("Failed to write doctree: %v", err)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, `master: index
titles:
  index: "User Guide"
  ch1: "Chapter One"
`, `<document><reference refuri="ch1.html">Chapter One</reference></document>`)

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Master != "index" {
		t.Errorf("Master = %q, want index", s.Master)
	}
	if s.Title("index") != "User Guide" {
		t.Errorf("Title(index) = %q, want User Guide", s.Title("index"))
	}
	if s.Title("unknown") != "unknown" {
		t.Errorf("Title(unknown) = %q, want fallback to name", s.Title("unknown"))
	}
	if s.Doctree.Root() == nil || s.Doctree.Root().Tag != "document" {
		t.Error("Doctree was not parsed")
	}
}

func TestLoad_MissingMetadata(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load() of directory without metadata should fail")
	}
}

func TestLoad_NoMaster(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "titles:\n  index: Guide\n", "<document/>")

	if _, err := Load(dir); err == nil {
		t.Error("Load() without master document should fail")
	}
}

func TestLoad_NoDoctree(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "master: index\n", "")

	if _, err := Load(dir); err == nil {
		t.Error("Load() without resolved doctree should fail")
	}
}
