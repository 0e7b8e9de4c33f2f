package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/hazyhaar/vitrine/observability"
	"github.com/hazyhaar/vitrine/profile"
	"github.com/hazyhaar/vitrine/snapstore"
)

type sessionStatus struct {
	Container string                 `json:"container"`
	State     string                 `json:"state"`
	Current   string                 `json:"current"`
	States    []snapstore.SavedState `json:"states"`
}

func decodeStatus(t *testing.T, body []byte) sessionStatus {
	t.Helper()
	var st sessionStatus
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v (raw: %s)", err, body)
	}
	return st
}

func TestE2E_SaveSelectFlow(t *testing.T) {
	// WHAT: a visitor opens a live sample, saves a snapshot, restores it,
	// and closes the session, all over plain HTTP with the minted profile
	// cookie carrying identity. Saves also land as gallery events.
	a := newApp(t, appOptions{sessions: true})

	resp, body := a.postJSON(t, "/api/sessions/annotations", nil)
	if resp.StatusCode != 201 {
		t.Fatalf("open status = %d: %s", resp.StatusCode, body)
	}
	st := decodeStatus(t, body)
	if st.State != "Ready" {
		t.Fatalf("state = %q, want Ready", st.State)
	}
	profileID := strings.TrimPrefix(st.Container, "vitrine-annotations-")
	if !strings.HasPrefix(profileID, "pr_") {
		t.Fatalf("container %q does not embed a profile id", st.Container)
	}
	if len(st.States) != 0 {
		t.Fatalf("fresh session has %d states", len(st.States))
	}

	resp, body = a.postJSON(t, "/api/sessions/annotations/save", nil)
	if resp.StatusCode != 201 {
		t.Fatalf("save status = %d: %s", resp.StatusCode, body)
	}
	var rec snapstore.SavedState
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatalf("decode save: %v", err)
	}
	if !strings.HasPrefix(rec.Key, snapstore.KeyPrefix) {
		t.Fatalf("key = %q", rec.Key)
	}

	resp, body = a.do(t, http.MethodGet, "/api/sessions/annotations/states", nil, "")
	if resp.StatusCode != 200 {
		t.Fatalf("states status = %d", resp.StatusCode)
	}
	st = decodeStatus(t, body)
	if len(st.States) != 1 || st.States[0].Key != rec.Key {
		t.Fatalf("states = %+v, want [%s]", st.States, rec.Key)
	}
	if st.Current != "" {
		t.Errorf("save must not change the selection, current = %q", st.Current)
	}

	resp, body = a.postJSON(t, "/api/sessions/annotations/select/"+rec.Key, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("select status = %d: %s", resp.StatusCode, body)
	}
	st = decodeStatus(t, body)
	if st.Current != rec.Key {
		t.Fatalf("current = %q, want %q", st.Current, rec.Key)
	}

	resp, body = a.do(t, http.MethodDelete, "/api/sessions/annotations", nil, "")
	if resp.StatusCode != 200 {
		t.Fatalf("close status = %d: %s", resp.StatusCode, body)
	}

	// The save and the restore were recorded against the visitor's profile.
	if n := a.countEvents(t, observability.EventStateSaved); n != 1 {
		t.Errorf("state_saved events = %d, want 1", n)
	}
	if n := a.countEvents(t, observability.EventStateLoaded); n != 1 {
		t.Errorf("state_loaded events = %d, want 1", n)
	}
	var eventProfile string
	err := a.obsDB.QueryRow(
		`SELECT profile_id FROM gallery_events WHERE event_type = ?`,
		observability.EventStateSaved).Scan(&eventProfile)
	if err != nil {
		t.Fatalf("event profile: %v", err)
	}
	if eventProfile != profileID {
		t.Errorf("event profile = %q, want %q", eventProfile, profileID)
	}
}

func TestE2E_SelectUnknownKey(t *testing.T) {
	a := newApp(t, appOptions{sessions: true})

	if resp, body := a.postJSON(t, "/api/sessions/annotations", nil); resp.StatusCode != 201 {
		t.Fatalf("open status = %d: %s", resp.StatusCode, body)
	}

	key := snapstore.KeyPrefix + "2020-01-01T00:00:00.000Z"
	resp, body := a.postJSON(t, "/api/sessions/annotations/select/"+key, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("select status = %d: %s", resp.StatusCode, body)
	}
}

func TestE2E_ProfileIsolation(t *testing.T) {
	// WHAT: two visitors save snapshots for the same sample and neither
	// sees the other's list.
	a := newApp(t, appOptions{sessions: true})

	if resp, body := a.postJSON(t, "/api/sessions/annotations", nil); resp.StatusCode != 201 {
		t.Fatalf("open A: %d %s", resp.StatusCode, body)
	}
	if resp, body := a.postJSON(t, "/api/sessions/annotations/save", nil); resp.StatusCode != 201 {
		t.Fatalf("save A: %d %s", resp.StatusCode, body)
	}

	// Second visitor: fresh cookie jar against the same server.
	jarB, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := &app{srv: a.srv, client: &http.Client{Jar: jarB}, obsDB: a.obsDB}

	resp, body := b.postJSON(t, "/api/sessions/annotations", nil)
	if resp.StatusCode != 201 {
		t.Fatalf("open B: %d %s", resp.StatusCode, body)
	}
	stB := decodeStatus(t, body)
	if len(stB.States) != 0 {
		t.Fatalf("visitor B sees %d foreign states", len(stB.States))
	}

	aCookie := cookieValue(t, a.client, a.srv.URL)
	bCookie := cookieValue(t, b.client, a.srv.URL)
	if aCookie == bCookie {
		t.Fatal("both visitors got the same profile cookie")
	}
}

func cookieValue(t *testing.T, c *http.Client, rawURL string) string {
	t.Helper()
	for _, ck := range c.Jar.Cookies(mustParseURL(t, rawURL)) {
		if ck.Name == profile.CookieName {
			return ck.Value
		}
	}
	t.Fatal("profile cookie missing")
	return ""
}

func TestE2E_SessionsDisabled(t *testing.T) {
	// WHAT: with the viewer host off, pages serve but the session bridge
	// answers 503.
	a := newApp(t, appOptions{sessions: false})

	resp, _ := a.do(t, http.MethodGet, "/samples/annotations", nil, "")
	if resp.StatusCode != 200 {
		t.Fatalf("sample page status = %d", resp.StatusCode)
	}

	resp, body := a.postJSON(t, "/api/sessions/annotations", nil)
	if resp.StatusCode != 503 {
		t.Fatalf("open status = %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "disabled") {
		t.Errorf("body = %s", body)
	}
}

func TestE2E_StaticSampleHasNoSessions(t *testing.T) {
	a := newApp(t, appOptions{sessions: true})

	resp, body := a.postJSON(t, "/api/sessions/comparison", nil)
	if resp.StatusCode != 409 {
		t.Fatalf("open status = %d: %s", resp.StatusCode, body)
	}
}

func TestE2E_FormFill(t *testing.T) {
	a := newApp(t, appOptions{sessions: true})

	if resp, body := a.postJSON(t, "/api/sessions/form-filling", nil); resp.StatusCode != 201 {
		t.Fatalf("open: %d %s", resp.StatusCode, body)
	}

	resp, body := a.postJSON(t, "/api/sessions/form-filling/form",
		map[string]any{"values": map[string]string{"applicant": "Ada Lovelace"}})
	if resp.StatusCode != 200 {
		t.Fatalf("form status = %d: %s", resp.StatusCode, body)
	}
}
