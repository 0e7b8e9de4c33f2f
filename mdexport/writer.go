package mdexport

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/vitrine/safe"
)

// Writer deposits markdown files into the export directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer targeting dir. The directory is created on
// first write if it does not exist.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Frontmatter is optional metadata prepended to an exported file as a YAML
// block. The zero value renders nothing.
type Frontmatter struct {
	Title    string
	Source   string
	Exported time.Time
}

func (f Frontmatter) render() string {
	if f.Title == "" && f.Source == "" && f.Exported.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString("---\n")
	if f.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", yamlValue(f.Title))
	}
	if f.Source != "" {
		fmt.Fprintf(&b, "source: %s\n", yamlValue(f.Source))
	}
	if !f.Exported.IsZero() {
		fmt.Fprintf(&b, "exported_at: %s\n", f.Exported.UTC().Format(time.RFC3339))
	}
	b.WriteString("---\n\n")
	return b.String()
}

// yamlValue flattens a value to a single safe line.
func yamlValue(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(v)
}

// Write lands markdown under name + ".md" and returns the written path.
// name is cleaned to a bare safe filename first, so a caller-supplied
// "../../etc/passwd" becomes a file inside the export directory, not
// outside it.
func (w *Writer) Write(name, markdown string) (string, error) {
	return w.WriteWithMeta(name, markdown, Frontmatter{})
}

// WriteWithMeta is Write with a frontmatter block prepended when fm is
// non-zero. The write is atomic: content lands under a .tmp name and is
// renamed into place, so a watcher never sees a partial file.
func (w *Writer) WriteWithMeta(name, markdown string, fm Frontmatter) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mdexport: mkdir %s: %w", w.dir, err)
	}

	clean := safe.CleanExportName(name, "output")
	clean = strings.TrimSuffix(clean, ".md")
	clean = strings.TrimSuffix(clean, ".pdf")

	target, err := safe.JoinUnder(w.dir, clean+".md")
	if err != nil {
		return "", fmt.Errorf("mdexport: resolve target: %w", err)
	}
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, []byte(fm.render()+markdown), 0o644); err != nil {
		return "", fmt.Errorf("mdexport: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("mdexport: rename: %w", err)
	}
	return target, nil
}
