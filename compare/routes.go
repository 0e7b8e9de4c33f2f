package compare

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/vitrine/safe"
)

// RegisterRoutes mounts the comparison endpoint on r.
func (c *Comparer) RegisterRoutes(r chi.Router) {
	r.Post("/api/compare", c.handleCompare)
}

// handleCompare diffs two multipart uploads, fields "a" and "b".
func (c *Comparer) handleCompare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*safe.MaxUploadBody)

	fa, ha, err := r.FormFile("a")
	if err != nil {
		jsonErr(w, "two files are required: a and b", http.StatusBadRequest)
		return
	}
	defer fa.Close()
	fb, hb, err := r.FormFile("b")
	if err != nil {
		jsonErr(w, "two files are required: a and b", http.StatusBadRequest)
		return
	}
	defer fb.Close()

	res, err := c.Compare(r.Context(),
		Source{Name: ha.Filename, Reader: fa},
		Source{Name: hb.Filename, Reader: fb},
	)
	switch {
	case err == nil:
	case errors.Is(err, ErrTooLarge):
		jsonErr(w, "documents too large to compare", http.StatusRequestEntityTooLarge)
		return
	default:
		c.logger.Warn("compare: request failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "comparison failed",
			"details": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
