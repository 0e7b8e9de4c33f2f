// Package proxy exposes the gallery's server-side API routes: thin
// pass-throughs to the Nutrient API with credentials added and error
// responses normalized to the shapes the sample pages expect.
//
// The routes hold no state. A missing API key is reported as a fixed 500
// configuration error; upstream failures keep their status code and carry
// the upstream body in the "details" field; transport failures map to 502.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/vitrine/nutrient"
	"github.com/hazyhaar/vitrine/safe"
)

// Messages for the normalized error responses. The sample pages match on
// these strings, so they are part of the route contract.
const (
	msgNoAPIKey    = "NUTRIENT_API_KEY is not configured"
	msgCertsFailed = "Failed to fetch certificates"
	msgConvFailed  = "Failed to convert PDF to Markdown"
	msgSignFailed  = "Failed to sign document"
)

// Service serves the proxy routes.
type Service struct {
	client  *nutrient.Client
	exports *exportSink
	logger  *slog.Logger
}

// exportSink decouples Service from the concrete writer so tests can
// observe side-writes.
type exportSink struct {
	write func(name, markdown string) (string, error)
}

// Config holds Service dependencies.
type Config struct {
	Client *nutrient.Client

	// ExportWrite lands the convert side-write. Nil disables the side
	// effect entirely.
	ExportWrite func(name, markdown string) (string, error)

	Logger *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{
		client: cfg.Client,
		logger: cfg.Logger,
	}
	if cfg.ExportWrite != nil {
		s.exports = &exportSink{write: cfg.ExportWrite}
	}
	return s
}

// RegisterRoutes mounts the proxy endpoints on r.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/api/certificates", s.handleCertificates)
	r.Post("/api/convert", s.handleConvert)
	r.Post("/api/sign", s.handleSign)
}

func (s *Service) handleCertificates(w http.ResponseWriter, r *http.Request) {
	body, err := s.client.Certificates(r.Context())
	if err != nil {
		s.writeUpstreamError(w, err, msgCertsFailed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Service) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, safe.MaxUploadBody)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		jsonErr(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	markdown, err := s.client.BuildMarkdown(r.Context(), file, hdr.Filename)
	if err != nil {
		s.writeUpstreamError(w, err, msgConvFailed)
		return
	}

	// Best-effort local copy under <fileName>.md. Failures are logged and
	// never change the response.
	if s.exports != nil {
		name := r.FormValue("fileName")
		if name == "" {
			name = hdr.Filename
		}
		if name == "" {
			name = "document"
		}
		if path, werr := s.exports.write(name, markdown); werr != nil {
			s.logger.Warn("proxy: markdown side-write failed", "name", name, "error", werr)
		} else {
			s.logger.Debug("proxy: markdown side-write", "path", path)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"markdown": markdown})
}

func (s *Service) handleSign(w http.ResponseWriter, r *http.Request) {
	payload, err := safe.ReadAllCapped(r.Body, safe.MaxUploadBody)
	if err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}

	body, err := s.client.Sign(r.Context(), payload)
	if err != nil {
		s.writeUpstreamError(w, err, msgSignFailed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// writeUpstreamError normalizes client errors into the route contract:
// missing key → fixed 500 shape; upstream non-2xx → same status with the
// upstream body as details; anything else → 502 with the error string.
func (s *Service) writeUpstreamError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, nutrient.ErrNoAPIKey) {
		jsonErr(w, msgNoAPIKey, http.StatusInternalServerError)
		return
	}

	var ue *nutrient.UpstreamError
	if errors.As(err, &ue) {
		s.logger.Warn("proxy: upstream error", "status", ue.Status, "msg", msg)
		writeDetails(w, ue.Status, msg, ue.Body)
		return
	}

	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}
	s.logger.Error("proxy: upstream unreachable", "error", err, "msg", msg)
	writeDetails(w, http.StatusBadGateway, msg, []byte(err.Error()))
}

// writeDetails emits {"error": msg, "details": body}. A body that is valid
// JSON is embedded as-is so structured upstream errors keep their shape;
// anything else becomes a plain string.
func writeDetails(w http.ResponseWriter, status int, msg string, body []byte) {
	var details any
	if json.Valid(body) && len(body) > 0 {
		details = json.RawMessage(body)
	} else {
		details = string(body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": msg, "details": details})
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
