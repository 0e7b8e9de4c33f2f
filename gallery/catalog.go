package gallery

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/vitrine/viewer"
)

// Sample describes one demo page of the gallery.
type Sample struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Blurb    string   `json:"blurb" yaml:"blurb"`
	Category string   `json:"category" yaml:"category"`
	Document string   `json:"document" yaml:"document"`
	Features []string `json:"features,omitempty" yaml:"features"`

	// Toolbar replaces the SDK default toolbar when non-empty. Only
	// builtin item names are accepted from YAML overlays.
	Toolbar []viewer.ToolbarItem `json:"toolbar,omitempty" yaml:"-"`

	// Pages is filled by ValidateDocuments for PDF documents.
	Pages int `json:"pages,omitempty" yaml:"-"`

	// Sessions marks samples that drive a server-side viewer session
	// (save/restore, form filling). Static samples render client-side only.
	Sessions bool `json:"sessions" yaml:"sessions"`
}

// seedSamples is the built-in demo set. Order is display order.
var seedSamples = []Sample{
	{
		ID:       "hello-world",
		Title:    "Hello World",
		Blurb:    "Open a document and browse it with the default toolbar.",
		Category: "viewing",
		Document: "/documents/welcome.pdf",
		Features: []string{"viewing", "navigation"},
	},
	{
		ID:       "annotations",
		Title:    "Annotation Snapshots",
		Blurb:    "Draw annotations, save named snapshots and jump back to any of them.",
		Category: "annotations",
		Document: "/documents/report.pdf",
		Features: []string{"annotations", "instant-json", "snapshots"},
		Toolbar: []viewer.ToolbarItem{
			viewer.BuiltinItem("sidebar-thumbnails"),
			viewer.BuiltinItem("pager"),
			viewer.BuiltinItem("annotate"),
			viewer.BuiltinItem("ink"),
			viewer.BuiltinItem("highlighter"),
			viewer.BuiltinItem("note"),
			viewer.SpacerItem(),
			viewer.CustomItem("save-state", "Save snapshot"),
		},
		Sessions: true,
	},
	{
		ID:       "form-filling",
		Title:    "Form Filling",
		Blurb:    "Fill PDF form fields programmatically and export the result.",
		Category: "forms",
		Document: "/documents/application-form.pdf",
		Features: []string{"forms", "instant-json"},
		Toolbar: []viewer.ToolbarItem{
			viewer.BuiltinItem("sidebar-thumbnails"),
			viewer.BuiltinItem("pager"),
			viewer.SpacerItem(),
			viewer.CustomItem("fill-demo", "Fill sample data"),
		},
		Sessions: true,
	},
	{
		ID:       "comparison",
		Title:    "Document Comparison",
		Blurb:    "Diff two document revisions line by line, with page anchors.",
		Category: "comparison",
		Document: "/documents/contract-v1.pdf",
		Features: []string{"comparison", "text-extraction"},
	},
	{
		ID:       "content-authoring",
		Title:    "Content Authoring",
		Blurb:    "Author rich content and export it as Markdown.",
		Category: "authoring",
		Document: "/documents/draft.pdf",
		Features: []string{"authoring", "markdown-export"},
	},
	{
		ID:       "pdf-to-markdown",
		Title:    "PDF to Markdown",
		Blurb:    "Convert an uploaded PDF to Markdown through the document API.",
		Category: "conversion",
		Document: "/documents/welcome.pdf",
		Features: []string{"conversion", "proxy"},
	},
	{
		ID:       "signing",
		Title:    "Digital Signatures",
		Blurb:    "Fetch trusted certificates and sign a document through the document API.",
		Category: "signing",
		Document: "/documents/agreement.pdf",
		Features: []string{"signatures", "proxy"},
	},
}

// Catalog holds the sample set. Immutable after New/LoadOverlay; reads are
// lock-free copies.
type Catalog struct {
	mu      sync.RWMutex
	samples []Sample
	byID    map[string]int
}

// NewCatalog returns a catalog seeded with the built-in demo set.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.replace(seedSamples)
	return c
}

func (c *Catalog) replace(samples []Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = make([]Sample, len(samples))
	copy(c.samples, samples)
	c.byID = make(map[string]int, len(samples))
	for i, s := range c.samples {
		c.byID[s.ID] = i
	}
}

// overlayFile is the YAML shape accepted by LoadOverlay.
type overlayFile struct {
	Samples []overlayEntry `yaml:"samples"`
}

type overlayEntry struct {
	Sample  `yaml:",inline"`
	Toolbar []string `yaml:"toolbar"`
}

// LoadOverlay merges a YAML overlay into the catalog: entries whose ID
// matches an existing sample override its non-empty fields, unknown IDs are
// appended. Toolbars in overlays name builtin SDK items only.
func (c *Catalog) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("gallery: read overlay: %w", err)
	}

	var of overlayFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("gallery: parse overlay: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range of.Samples {
		if entry.ID == "" {
			return fmt.Errorf("gallery: overlay entry without id")
		}
		var toolbar []viewer.ToolbarItem
		for _, name := range entry.Toolbar {
			toolbar = append(toolbar, viewer.BuiltinItem(name))
		}

		i, ok := c.byID[entry.ID]
		if !ok {
			s := entry.Sample
			s.Toolbar = toolbar
			c.samples = append(c.samples, s)
			c.byID[s.ID] = len(c.samples) - 1
			continue
		}
		merge(&c.samples[i], entry.Sample, toolbar)
	}
	return nil
}

// merge overrides the target's fields with the overlay's non-empty ones.
func merge(dst *Sample, src Sample, toolbar []viewer.ToolbarItem) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Blurb != "" {
		dst.Blurb = src.Blurb
	}
	if src.Category != "" {
		dst.Category = src.Category
	}
	if src.Document != "" {
		dst.Document = src.Document
	}
	if len(src.Features) > 0 {
		dst.Features = src.Features
	}
	if len(toolbar) > 0 {
		dst.Toolbar = toolbar
	}
	if src.Sessions {
		dst.Sessions = true
	}
}

// List returns all samples in display order.
func (c *Catalog) List() []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Get returns the sample with the given ID.
func (c *Catalog) Get(id string) (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return Sample{}, false
	}
	return c.samples[i], true
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool, len(c.samples))
	var out []string
	for _, s := range c.samples {
		if s.Category != "" && !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) setPages(id string, pages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.byID[id]; ok {
		c.samples[i].Pages = pages
	}
}
