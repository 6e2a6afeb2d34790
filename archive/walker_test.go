package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func createTestArchive(t *testing.T, names []string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte("data")); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close archive: %v", err)
	}
	return path
}

func TestWalk_StoredOrder(t *testing.T) {
	names := []string{"mimetype", "META-INF/container.xml", "content.opf", "index.html"}
	path := createTestArchive(t, names)

	var visited []string
	err := Walk(path, "", func(_ string, f *zip.File) error {
		visited = append(visited, f.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if len(visited) != len(names) {
		t.Fatalf("visited %d entries, want %d", len(visited), len(names))
	}
	for i, name := range names {
		if visited[i] != name {
			t.Errorf("visited[%d] = %q, want %q", i, visited[i], name)
		}
	}
}

func TestWalk_Pattern(t *testing.T) {
	path := createTestArchive(t, []string{"docs/a.html", "docs/b.html", "images/c.png"})

	var visited []string
	err := Walk(path, "docs/", func(_ string, f *zip.File) error {
		visited = append(visited, f.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(visited) != 2 {
		t.Errorf("visited = %v, want only docs entries", visited)
	}
}

func TestWalk_RejectsUnsafePaths(t *testing.T) {
	path := createTestArchive(t, []string{"../escape.html"})

	err := Walk(path, "", func(_ string, _ *zip.File) error { return nil })
	if err == nil {
		t.Error("Walk() accepted entry with path traversal")
	}
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		path string
		safe bool
	}{
		{"index.html", true},
		{"docs/index.html", true},
		{"/etc/passwd", false},
		{"../outside", false},
		{"docs/../../outside", false},
		{`\windows\path`, false},
	}
	for _, tt := range tests {
		if got := isSafePath(tt.path); got != tt.safe {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.path, got, tt.safe)
		}
	}
}
