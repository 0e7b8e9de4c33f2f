package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/vitrine/observability"
)

type filePart struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("field %s: %v", k, err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("file %s: %v", f.field, err)
		}
		io.WriteString(fw, f.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestE2E_ConvertWritesExportCopy(t *testing.T) {
	// WHAT: a conversion answers the upstream markdown and drops a copy in
	// the exports directory, recorded as an export event.
	a := newApp(t, appOptions{})

	body, ctype := multipartBody(t,
		map[string]string{"fileName": "quarterly-report.pdf"},
		filePart{field: "file", name: "upload.pdf", content: "%PDF-1.4 stub"})
	resp, data := a.do(t, http.MethodPost, "/api/convert", body, ctype)
	if resp.StatusCode != 200 {
		t.Fatalf("convert status = %d: %s", resp.StatusCode, data)
	}
	var out struct {
		Markdown string `json:"markdown"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(out.Markdown, "# Converted") {
		t.Fatalf("markdown = %q", out.Markdown)
	}

	copyPath := filepath.Join(a.exports, "quarterly-report.md")
	md, err := os.ReadFile(copyPath)
	if err != nil {
		t.Fatalf("export copy: %v", err)
	}
	if string(md) != out.Markdown {
		t.Errorf("export copy differs from response:\n%s", md)
	}
	if n := a.countEvents(t, observability.EventExportWritten); n != 1 {
		t.Errorf("export events = %d, want 1", n)
	}
}

func TestE2E_CertificatesPassthrough(t *testing.T) {
	a := newApp(t, appOptions{})

	resp, body := a.do(t, http.MethodGet, "/api/certificates", nil, "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if !bytes.Contains(body, []byte("Vitrine Test CA")) {
		t.Errorf("body = %s", body)
	}
}

func TestE2E_SignPassthrough(t *testing.T) {
	a := newApp(t, appOptions{})

	resp, body := a.postJSON(t, "/api/sign", map[string]any{
		"documentId": "agreement",
		"signatureType": "cades",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Signed bool `json:"signed"`
	}
	if err := json.Unmarshal(body, &out); err != nil || !out.Signed {
		t.Fatalf("body = %s (err %v)", body, err)
	}
}

func TestE2E_MissingKeyConfigError(t *testing.T) {
	// WHAT: without an upstream key the proxy answers the fixed
	// configuration error instead of leaking a transport failure.
	a := newApp(t, appOptions{noAPIKey: true})

	resp, body := a.do(t, http.MethodGet, "/api/certificates", nil, "")
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if !bytes.Contains(body, []byte("NUTRIENT_API_KEY is not configured")) {
		t.Errorf("body = %s", body)
	}
}

func TestE2E_CompareEndpoint(t *testing.T) {
	a := newApp(t, appOptions{})

	body, ctype := multipartBody(t, nil,
		filePart{field: "a", name: "v1.txt", content: "alpha\nbravo\ncharlie\n"},
		filePart{field: "b", name: "v2.txt", content: "alpha\ncharlie\ndelta\n"})
	resp, data := a.do(t, http.MethodPost, "/api/compare", body, ctype)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}

	var res struct {
		Left    string `json:"left"`
		Right   string `json:"right"`
		Changes []struct {
			Op   string `json:"op"`
			Text string `json:"text"`
		} `json:"changes"`
		Summary struct {
			Added     int `json:"added"`
			Removed   int `json:"removed"`
			Unchanged int `json:"unchanged"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Left != "v1.txt" || res.Right != "v2.txt" {
		t.Errorf("names = %q, %q", res.Left, res.Right)
	}
	if res.Summary.Added != 1 || res.Summary.Removed != 1 || res.Summary.Unchanged != 2 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(res.Changes) != 4 {
		t.Fatalf("changes = %+v", res.Changes)
	}
}

func TestE2E_AuthoringExport(t *testing.T) {
	// WHAT: authored HTML comes back as markdown and lands as a
	// frontmattered file in the exports directory.
	a := newApp(t, appOptions{})

	resp, body := a.postJSON(t, "/api/export/markdown", map[string]any{
		"html": "<h1>Meeting notes</h1><p>Ship the gallery.</p>",
		"name": "meeting",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Markdown string `json:"markdown"`
		File     string `json:"file"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.File != "meeting.md" {
		t.Errorf("file = %q", out.File)
	}
	if !strings.Contains(out.Markdown, "Meeting notes") {
		t.Errorf("markdown = %q", out.Markdown)
	}

	raw, err := os.ReadFile(filepath.Join(a.exports, out.File))
	if err != nil {
		t.Fatalf("export file: %v", err)
	}
	content := string(raw)
	if !strings.HasPrefix(content, "---\n") || !strings.Contains(content, "title: meeting\n") {
		t.Errorf("missing frontmatter:\n%s", content)
	}
	if !strings.Contains(content, "Ship the gallery.") {
		t.Errorf("missing body:\n%s", content)
	}
}

func TestE2E_ExportRejectsEmptyHTML(t *testing.T) {
	a := newApp(t, appOptions{})

	resp, body := a.postJSON(t, "/api/export/markdown", map[string]any{"html": "   "})
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
}

func TestE2E_FeedbackFlow(t *testing.T) {
	// WHAT: a submitted comment is attributed to the visitor's profile and
	// shows up in the per-sample listing.
	a := newApp(t, appOptions{})

	resp, body := a.postJSON(t, "/feedback/submit", map[string]any{
		"text":     "The snapshot picker is <b>great</b>.",
		"sample":   "annotations",
		"page_url": "https://demo.example/samples/annotations",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("submit status = %d: %s", resp.StatusCode, body)
	}

	resp, body = a.do(t, http.MethodGet, "/feedback/comments?sample=annotations", nil, "")
	if resp.StatusCode != 200 {
		t.Fatalf("list status = %d: %s", resp.StatusCode, body)
	}
	var comments []struct {
		Text      string  `json:"text"`
		Sample    string  `json:"sample"`
		ProfileID *string `json:"profile_id"`
	}
	if err := json.Unmarshal(body, &comments); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("comments = %+v", comments)
	}
	if comments[0].Text != "The snapshot picker is great." {
		t.Errorf("text = %q, markup must be stripped", comments[0].Text)
	}
	if comments[0].ProfileID == nil || !strings.HasPrefix(*comments[0].ProfileID, "pr_") {
		t.Errorf("profile = %v", comments[0].ProfileID)
	}

	// Unrelated samples list nothing.
	_, body = a.do(t, http.MethodGet, "/feedback/comments?sample=signing", nil, "")
	var other []json.RawMessage
	if err := json.Unmarshal(body, &other); err != nil || len(other) != 0 {
		t.Errorf("foreign sample list = %s", body)
	}
}
