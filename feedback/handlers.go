package feedback

import (
	"database/sql"
	"encoding/json"
	"html"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (w *Widget) handleSubmit(wr http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(wr, r.Body, 32*1024)

	var req struct {
		Text    string `json:"text"`
		Sample  string `json:"sample"`
		PageURL string `json:"page_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(wr, "invalid request body", http.StatusBadRequest)
		return
	}

	// Strip markup, then unescape the entity-encoded survivors so plain
	// text like "R&D" round-trips unchanged.
	text := html.UnescapeString(w.policy.Sanitize(req.Text))
	text = strings.TrimSpace(text)
	if text == "" {
		jsonErr(wr, "text is required", http.StatusBadRequest)
		return
	}
	if len(text) > 5000 {
		text = text[:5000]
	}

	id := newID()
	now := time.Now().Unix()
	ua := r.UserAgent()

	var profileID *string
	if w.profileFn != nil {
		if pid := w.profileFn(r); pid != "" {
			profileID = &pid
		}
	}

	_, err := w.db.Exec(
		`INSERT INTO feedback_comments (id, text, sample, page_url, user_agent, profile_id, app_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, text, req.Sample, req.PageURL, ua, profileID, w.appName, now,
	)
	if err != nil {
		jsonErr(wr, "internal error", http.StatusInternalServerError)
		return
	}

	wr.Header().Set("Content-Type", "application/json")
	json.NewEncoder(wr).Encode(map[string]string{"id": id, "status": "ok"})
}

func (w *Widget) handleListJSON(wr http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	comments, err := w.listComments(r.URL.Query().Get("sample"), limit, offset)
	if err != nil {
		jsonErr(wr, "internal error", http.StatusInternalServerError)
		return
	}

	wr.Header().Set("Content-Type", "application/json")
	json.NewEncoder(wr).Encode(comments)
}

// commentView is the template-friendly projection of a Comment.
type commentView struct {
	Text      string
	Sample    string
	ProfileID string
	CreatedAt string
	PageURL   string
	SafeURL   bool
}

var listHTMLTmpl = template.Must(template.New("list").Parse(`<!DOCTYPE html>
<html lang="fr"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Commentaires — {{.AppName}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:800px;margin:2rem auto;padding:0 1rem;color:#222;background:#fafafa}
h1{font-size:1.4rem;border-bottom:2px solid #e0e0e0;padding-bottom:.5rem}
.comment{background:#fff;border:1px solid #e0e0e0;border-radius:6px;padding:1rem;margin-bottom:1rem}
.meta{font-size:.8rem;color:#666;margin-top:.5rem}
.sample{display:inline-block;background:#eef2ff;color:#3730a3;border-radius:4px;padding:.05rem .4rem;font-size:.75rem}
.empty{color:#999;font-style:italic}
</style></head><body>
<h1>Commentaires — {{.AppName}} ({{.Count}})</h1>
{{- if eq .Count 0}}
<p class="empty">Aucun commentaire pour le moment.</p>
{{- end}}
{{- range .Comments}}
<div class="comment"><p>{{.Text}}</p><div class="meta">{{.ProfileID}} &mdash; {{.CreatedAt}}
{{- if .Sample}} &mdash; <span class="sample">{{.Sample}}</span>{{- end}}
{{- if and .PageURL .SafeURL}} &mdash; <a href="{{.PageURL}}">{{.PageURL}}</a>
{{- else if .PageURL}} &mdash; {{.PageURL}}
{{- end}}</div></div>
{{- end}}
</body></html>`))

func (w *Widget) handleListHTML(wr http.ResponseWriter, r *http.Request) {
	comments, err := w.listComments(r.URL.Query().Get("sample"), 200, 0)
	if err != nil {
		http.Error(wr, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]commentView, len(comments))
	for i, c := range comments {
		pid := "anonyme"
		if c.ProfileID != nil {
			pid = *c.ProfileID
		}
		views[i] = commentView{
			Text:      c.Text,
			Sample:    c.Sample,
			ProfileID: pid,
			CreatedAt: time.Unix(c.CreatedAt, 0).Format("2006-01-02 15:04"),
			PageURL:   c.PageURL,
			SafeURL:   c.PageURL != "" && isSafeURL(c.PageURL),
		}
	}

	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	listHTMLTmpl.Execute(wr, struct {
		AppName  string
		Count    int
		Comments []commentView
	}{
		AppName:  w.appName,
		Count:    len(comments),
		Comments: views,
	})
}

func (w *Widget) listComments(sample string, limit, offset int) ([]Comment, error) {
	query := `SELECT id, text, sample, page_url, user_agent, profile_id, app_name, created_at
	 FROM feedback_comments`
	args := []any{}
	if sample != "" {
		query += ` WHERE sample = ?`
		args = append(args, sample)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := w.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		var pid sql.NullString
		if err := rows.Scan(&c.ID, &c.Text, &c.Sample, &c.PageURL, &c.UserAgent, &pid, &c.AppName, &c.CreatedAt); err != nil {
			continue
		}
		if pid.Valid {
			c.ProfileID = &pid.String
		}
		comments = append(comments, c)
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

// isSafeURL returns true if the URL uses http or https scheme.
func isSafeURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
