package gallery

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/vitrine/kit"
	"github.com/hazyhaar/vitrine/observability"
	"github.com/hazyhaar/vitrine/safe"
	"github.com/hazyhaar/vitrine/session"
	"github.com/hazyhaar/vitrine/snapstore"
	"github.com/hazyhaar/vitrine/viewer"
)

// RegisterRoutes mounts the gallery pages, the documents and static file
// servers, the catalog API, and the session bridge on r.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/", s.handleIndex)
	r.Get("/samples/{sampleID}", s.handleSamplePage)
	r.Get("/shell/{containerID}", s.handleShell)
	r.Handle("/static/*", http.FileServerFS(staticFS))
	r.Handle("/documents/*", http.StripPrefix("/documents/",
		http.FileServer(http.Dir(s.docsDir))))

	r.Get("/api/samples", s.handleListSamples)
	r.Get("/api/samples/{sampleID}", s.handleGetSample)

	r.Route("/api/sessions/{sampleID}", func(r chi.Router) {
		r.Post("/", s.handleSessionOpen)
		r.Delete("/", s.handleSessionClose)
		r.Post("/save", s.handleSessionSave)
		r.Get("/states", s.handleSessionStates)
		r.Post("/select/{key}", s.handleSessionSelect)
		r.Post("/form", s.handleSessionForm)
	})
}

func (s *Service) handleListSamples(w http.ResponseWriter, r *http.Request) {
	samples := s.catalog.List()
	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := samples[:0]
		for _, smp := range samples {
			if smp.Category == cat {
				filtered = append(filtered, smp)
			}
		}
		samples = filtered
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Service) handleGetSample(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.catalog.Get(chi.URLParam(r, "sampleID"))
	if !ok {
		jsonErr(w, "sample not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// sessionEnv resolves the hub, profile and sample shared by every bridge
// handler. A false return means the response is already written.
func (s *Service) sessionEnv(w http.ResponseWriter, r *http.Request) (profile, sampleID string, ok bool) {
	if s.sessions == nil {
		jsonErr(w, "viewer sessions are disabled", http.StatusServiceUnavailable)
		return "", "", false
	}
	profile = kit.GetProfileID(r.Context())
	if profile == "" {
		jsonErr(w, "profile required", http.StatusUnauthorized)
		return "", "", false
	}
	sampleID = chi.URLParam(r, "sampleID")
	if _, found := s.catalog.Get(sampleID); !found {
		jsonErr(w, "sample not found", http.StatusNotFound)
		return "", "", false
	}
	return profile, sampleID, true
}

// controller returns the profile's live controller, answering 404 when the
// sample was never opened.
func (s *Service) controller(w http.ResponseWriter, profile, sampleID string) *session.Controller {
	ctl := s.sessions.Get(profile, sampleID)
	if ctl == nil {
		jsonErr(w, "no active session", http.StatusNotFound)
	}
	return ctl
}

type sessionStatus struct {
	Container string                `json:"container"`
	State     string                `json:"state"`
	Current   string                `json:"current,omitempty"`
	States    []snapstore.SavedState `json:"states"`
}

func status(ctl *session.Controller, container string) sessionStatus {
	return sessionStatus{
		Container: container,
		State:     ctl.State().String(),
		Current:   ctl.Current(),
		States:    ctl.Entries(),
	}
}

func (s *Service) handleSessionOpen(w http.ResponseWriter, r *http.Request) {
	profile, sampleID, ok := s.sessionEnv(w, r)
	if !ok {
		return
	}

	ctl, err := s.sessions.Open(r.Context(), profile, sampleID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSampleSessions):
		jsonErr(w, "sample has no viewer sessions", http.StatusConflict)
		return
	case errors.Is(err, viewer.ErrSDKLoad):
		s.logger.Error("gallery: SDK never became ready", "sample", sampleID, "error", err)
		jsonErr(w, "viewer SDK failed to load", http.StatusBadGateway)
		return
	default:
		s.logger.Error("gallery: session open failed", "sample", sampleID, "error", err)
		jsonErr(w, "viewer mount failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusCreated, status(ctl, ContainerID(profile, sampleID)))
}

func (s *Service) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	profile, sampleID, ok := s.sessionEnv(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Close(r.Context(), profile, sampleID); err != nil {
		jsonErr(w, "session close failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Service) handleSessionSave(w http.ResponseWriter, r *http.Request) {
	profile, sampleID, ok := s.sessionEnv(w, r)
	if !ok {
		return
	}
	ctl := s.controller(w, profile, sampleID)
	if ctl == nil {
		return
	}

	start := time.Now()
	rec, err := ctl.Save(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoInstance):
		jsonErr(w, "no viewer instance mounted", http.StatusConflict)
		return
	default:
		s.logger.Error("gallery: save failed", "sample", sampleID, "error", err)
		jsonErr(w, "save failed", http.StatusInternalServerError)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordDuration(observability.MetricSaveDurationMs, time.Since(start), sampleID)
		s.metrics.RecordSimple(observability.MetricSavedStatesCount, float64(len(ctl.Entries())), "count")
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Service) handleSessionStates(w http.ResponseWriter, r *http.Request) {
	profile, sampleID, ok := s.sessionEnv(w, r)
	if !ok {
		return
	}
	ctl := s.controller(w, profile, sampleID)
	if ctl == nil {
		return
	}
	writeJSON(w, http.StatusOK, status(ctl, ContainerID(profile, sampleID)))
}

func (s *Service) handleSessionSelect(w http.ResponseWriter, r *http.Request) {
	profile, sampleID, ok := s.sessionEnv(w, r)
	if !ok {
		return
	}
	ctl := s.controller(w, profile, sampleID)
	if ctl == nil {
		return
	}

	key := chi.URLParam(r, "key")
	start := time.Now()
	err := ctl.Select(r.Context(), key)
	switch {
	case err == nil:
	case errors.Is(err, snapstore.ErrStateNotFound):
		jsonErr(w, "saved state not found", http.StatusNotFound)
		return
	case errors.Is(err, snapstore.ErrStateCorrupt):
		jsonErr(w, "saved state is corrupt", http.StatusUnprocessableEntity)
		return
	default:
		s.logger.Error("gallery: select failed", "sample", sampleID, "key", key, "error", err)
		jsonErr(w, "restoring the saved state failed", http.StatusBadGateway)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordDuration(observability.MetricLoadDurationMs, time.Since(start), sampleID)
	}
	writeJSON(w, http.StatusOK, status(ctl, ContainerID(profile, sampleID)))
}

func (s *Service) handleSessionForm(w http.ResponseWriter, r *http.Request) {
	profile, sampleID, ok := s.sessionEnv(w, r)
	if !ok {
		return
	}
	ctl := s.controller(w, profile, sampleID)
	if ctl == nil {
		return
	}

	var req struct {
		Values map[string]string `json:"values"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonErr(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.Values) == 0 {
		jsonErr(w, "values are required", http.StatusBadRequest)
		return
	}

	err := ctl.FillForm(r.Context(), req.Values)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoInstance):
		jsonErr(w, "no viewer instance mounted", http.StatusConflict)
		return
	default:
		s.logger.Error("gallery: form fill failed", "sample", sampleID, "error", err)
		jsonErr(w, "form fill failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// checkContainerID guards the shell route against markup injection through
// the path parameter.
func checkContainerID(id string) error {
	return safe.CheckIdentifier(id)
}
