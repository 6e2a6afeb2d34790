package site

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestAddLinkTargets(t *testing.T) {
	dir := t.TempDir()

	page := filepath.Join(dir, "index.html")
	content := `<html><body>
<p>See <a href="https://example.com/docs">the docs</a> for details.</p>
<p>Or <a href="https://example.com/x">https://example.com/x</a> directly.</p>
<p>Also <a href="ch1.html">chapter one</a> here.</p>
</body></html>`
	if err := os.WriteFile(page, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	if err := AddLinkTargets(dir, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("AddLinkTargets() error = %v", err)
	}

	data, err := os.ReadFile(page)
	if err != nil {
		t.Fatalf("Failed to read page back: %v", err)
	}
	got := string(data)

	if !strings.Contains(got, `<span class="link-target"> [https://example.com/docs]</span>`) {
		t.Errorf("external link did not get a visible target:\n%s", got)
	}
	if strings.Contains(got, "[https://example.com/x]") {
		t.Errorf("link already showing its target should stay unchanged:\n%s", got)
	}
	if strings.Contains(got, "[ch1.html]") {
		t.Errorf("internal link should stay unchanged:\n%s", got)
	}
}

func TestAddLinkTargets_Rerun(t *testing.T) {
	dir := t.TempDir()

	page := filepath.Join(dir, "index.html")
	content := `<html><body><p>See <a href="https://example.com/doc">docs</a> here.</p></body></html>`
	if err := os.WriteFile(page, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	log := zaptest.NewLogger(t)
	if err := AddLinkTargets(dir, log); err != nil {
		t.Fatalf("AddLinkTargets() error = %v", err)
	}
	data, err := os.ReadFile(page)
	if err != nil {
		t.Fatalf("Failed to read page back: %v", err)
	}
	once := string(data)

	// rebuilding over the same directory must not stack up more spans
	if err := AddLinkTargets(dir, log); err != nil {
		t.Fatalf("AddLinkTargets() second run error = %v", err)
	}
	data, err = os.ReadFile(page)
	if err != nil {
		t.Fatalf("Failed to read page back: %v", err)
	}

	span := `<span class="link-target"> [https://example.com/doc]</span>`
	if got := strings.Count(string(data), span); got != 1 {
		t.Errorf("link target appended %d times after two runs, want 1:\n%s", got, data)
	}
	if string(data) != once {
		t.Error("second run should leave the page unchanged")
	}
}

func TestAddLinkTargets_SkipsMetadataAndUnchangedFiles(t *testing.T) {
	dir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, MetaDir), 0755); err != nil {
		t.Fatalf("Failed to create metadata directory: %v", err)
	}
	metaPage := filepath.Join(dir, MetaDir, "report.html")
	if err := os.WriteFile(metaPage, []byte(`<a href="https://example.com">x</a>`), 0644); err != nil {
		t.Fatalf("Failed to write metadata page: %v", err)
	}

	plain := filepath.Join(dir, "plain.html")
	plainContent := `<html><body><a href="ch1.html">one</a></body></html>`
	if err := os.WriteFile(plain, []byte(plainContent), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	if err := AddLinkTargets(dir, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("AddLinkTargets() error = %v", err)
	}

	data, err := os.ReadFile(metaPage)
	if err != nil {
		t.Fatalf("Failed to read metadata page back: %v", err)
	}
	if string(data) != `<a href="https://example.com">x</a>` {
		t.Error("pages under the metadata directory must not be rewritten")
	}

	data, err = os.ReadFile(plain)
	if err != nil {
		t.Fatalf("Failed to read page back: %v", err)
	}
	// no external links, file must stay byte for byte identical
	if string(data) != plainContent {
		t.Error("page without external links should not be rewritten")
	}
}
