package gallery

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type indexData struct {
	SDK        SDKConfig
	Categories []string
	Samples    []Sample
}

type sampleData struct {
	SDK    SDKConfig
	Sample Sample
}

type shellData struct {
	SDK       SDKConfig
	Container string
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.renderPage(w, "index.html.tmpl", indexData{
		SDK:        s.sdk,
		Categories: s.catalog.Categories(),
		Samples:    s.catalog.List(),
	})
}

func (s *Service) handleSamplePage(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.catalog.Get(chi.URLParam(r, "sampleID"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.renderPage(w, "sample.html.tmpl", sampleData{SDK: s.sdk, Sample: sample})
}

// handleShell serves the minimal page the headless viewer host navigates
// to: one container div plus the SDK loader, nothing else.
func (s *Service) handleShell(w http.ResponseWriter, r *http.Request) {
	container := chi.URLParam(r, "containerID")
	if err := checkContainerID(container); err != nil {
		http.Error(w, "invalid container id", http.StatusBadRequest)
		return
	}
	s.renderPage(w, "shell.html.tmpl", shellData{SDK: s.sdk, Container: container})
}

func (s *Service) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("gallery: render page", "template", name, "error", err)
	}
}
