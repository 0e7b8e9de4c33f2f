package mdexport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestConvertBasic(t *testing.T) {
	c := NewConverter()
	md, err := c.Convert(`<h1>Title</h1><p>Some <strong>bold</strong> text.</p>`, "")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(md, "# Title") {
		t.Errorf("missing heading in %q", md)
	}
	if !strings.Contains(md, "**bold**") {
		t.Errorf("missing bold in %q", md)
	}
}

// WHAT: script payloads in pasted HTML never survive into the markdown.
func TestConvertStripsScripts(t *testing.T) {
	c := NewConverter()
	md, err := c.Convert(`<p onclick="alert(1)">hi</p><script>alert(2)</script>`, "")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if strings.Contains(md, "alert") {
		t.Errorf("script content leaked into markdown: %q", md)
	}
	if !strings.Contains(md, "hi") {
		t.Errorf("text content lost: %q", md)
	}
}

func TestConvertTable(t *testing.T) {
	c := NewConverter()
	md, err := c.Convert(`<table><tr><th>A</th><th>B</th></tr><tr><td>1</td><td>2</td></tr></table>`, "")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(md, "| A | B |") {
		t.Errorf("table not converted: %q", md)
	}
}

func TestConvertEmpty(t *testing.T) {
	c := NewConverter()
	md, err := c.Convert("  \n\t ", "")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if md != "" {
		t.Errorf("md = %q, want empty", md)
	}
}

func TestConvertResolvesRelativeLinks(t *testing.T) {
	c := NewConverter()
	md, err := c.Convert(`<a href="/docs">docs</a>`, "https://example.com")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(md, "https://example.com/docs") {
		t.Errorf("relative link not resolved: %q", md)
	}
}

func TestWriterWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write("report.pdf", "# Report\n")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "report.md" {
		t.Errorf("path = %q, want report.md basename", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "# Report\n" {
		t.Errorf("content = %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover tmp file %s", e.Name())
		}
	}
}

// WHAT: hostile names are confined to the export directory.
func TestWriterCleansName(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write("../../etc/passwd", "x")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Errorf("path escaped export dir: %q", path)
	}
}

func TestWriterEmptyNameFallsBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write("", "x")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "output.md" {
		t.Errorf("path = %q, want output.md basename", path)
	}
}

func TestWriterOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if _, err := w.Write("doc", "first"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	path, err := w.Write("doc", "second")
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
}

func TestFrontmatterRender(t *testing.T) {
	if got := (Frontmatter{}).render(); got != "" {
		t.Errorf("zero frontmatter renders %q", got)
	}

	fm := Frontmatter{
		Title:    "Q3\ndraft",
		Source:   "https://example.com/page",
		Exported: time.Date(2026, 8, 22, 10, 30, 0, 0, time.UTC),
	}
	got := fm.render()
	for _, want := range []string{
		"title: Q3 draft\n",
		"source: https://example.com/page\n",
		"exported_at: 2026-08-22T10:30:00Z\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("frontmatter lacks %q:\n%s", want, got)
		}
	}
	if !strings.HasPrefix(got, "---\n") || !strings.HasSuffix(got, "---\n\n") {
		t.Errorf("frontmatter not delimited:\n%s", got)
	}
}

func TestWriterWithMeta(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.WriteWithMeta("draft", "# Body\n", Frontmatter{Title: "Draft"})
	if err != nil {
		t.Fatalf("WriteWithMeta: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "---\ntitle: Draft\n---\n\n# Body\n") {
		t.Errorf("content = %q", data)
	}
}

func newTestExporter(t *testing.T) (*Exporter, string, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	e := NewExporter(ExporterConfig{
		Converter: NewConverter(),
		Writer:    NewWriter(dir),
	})
	r := chi.NewRouter()
	e.RegisterRoutes(r)
	return e, dir, r
}

func postExport(t *testing.T, h http.Handler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/export/markdown", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExportRoute(t *testing.T) {
	_, dir, h := newTestExporter(t)

	rec := postExport(t, h, `{"html":"<h1>Notes</h1><p>Hello</p>","name":"meeting-notes","source_url":"https://example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp["markdown"], "# Notes") {
		t.Errorf("markdown = %q", resp["markdown"])
	}
	if resp["file"] != "meeting-notes.md" {
		t.Errorf("file = %q", resp["file"])
	}

	data, err := os.ReadFile(filepath.Join(dir, "meeting-notes.md"))
	if err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	for _, want := range []string{"title: meeting-notes", "source: https://example.com", "# Notes"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("exported file lacks %q:\n%s", want, data)
		}
	}
}

func TestExportRoute_MissingHTML(t *testing.T) {
	_, _, h := newTestExporter(t)
	if rec := postExport(t, h, `{"name":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if rec := postExport(t, h, `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad JSON status = %d, want 400", rec.Code)
	}
}

// WHAT: markup that sanitizes to nothing is an error, not an empty file.
func TestExportRoute_MarkupOnly(t *testing.T) {
	_, dir, h := newTestExporter(t)
	rec := postExport(t, h, `{"html":"<script>alert(1)</script>","name":"evil"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.md")); !os.IsNotExist(err) {
		t.Error("empty export landed on disk")
	}
}

func TestExportRoute_DefaultName(t *testing.T) {
	_, dir, h := newTestExporter(t)
	rec := postExport(t, h, `{"html":"<p>text</p>"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "authored.md")); err != nil {
		t.Fatalf("default-named export missing: %v", err)
	}
}
