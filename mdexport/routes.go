package mdexport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/vitrine/safe"
)

// Exporter serves the content-authoring demo's export endpoint: HTML in,
// markdown out, plus a frontmattered .md file in the exports directory.
type Exporter struct {
	conv   *Converter
	writer *Writer
	logger *slog.Logger
	now    func() time.Time
}

// ExporterConfig holds Exporter dependencies.
type ExporterConfig struct {
	Converter *Converter // required
	Writer    *Writer    // required
	Logger    *slog.Logger
}

// NewExporter creates an Exporter.
func NewExporter(cfg ExporterConfig) *Exporter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{
		conv:   cfg.Converter,
		writer: cfg.Writer,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// RegisterRoutes mounts the export endpoint on r.
func (e *Exporter) RegisterRoutes(r chi.Router) {
	r.Post("/api/export/markdown", e.handleExport)
}

func (e *Exporter) handleExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, safe.MaxUploadBody)

	var req struct {
		HTML      string `json:"html"`
		Name      string `json:"name"`
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		jsonErr(w, "html is required", http.StatusBadRequest)
		return
	}

	markdown, err := e.conv.Convert(req.HTML, req.SourceURL)
	if err != nil {
		e.logger.Warn("mdexport: conversion failed", "error", err)
		jsonErr(w, "conversion failed", http.StatusUnprocessableEntity)
		return
	}
	if markdown == "" {
		// Sanitization ate everything: markup-only input with no text.
		jsonErr(w, "nothing to convert", http.StatusUnprocessableEntity)
		return
	}

	name := req.Name
	if name == "" {
		name = "authored"
	}
	path, err := e.writer.WriteWithMeta(name, markdown, Frontmatter{
		Title:    name,
		Source:   req.SourceURL,
		Exported: e.now(),
	})
	if err != nil {
		e.logger.Error("mdexport: export write failed", "name", name, "error", err)
		jsonErr(w, "export failed", http.StatusInternalServerError)
		return
	}
	e.logger.Info("mdexport: markdown exported", "file", filepath.Base(path), "bytes", len(markdown))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"markdown": markdown,
		"file":     filepath.Base(path),
	})
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
