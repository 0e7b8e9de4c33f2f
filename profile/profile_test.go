package profile_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hazyhaar/vitrine/kit"
	"github.com/hazyhaar/vitrine/profile"
	"github.com/hazyhaar/vitrine/safe"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueParseRoundtrip(t *testing.T) {
	token, err := profile.Issue(testSecret, "pr_abc123", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := profile.Parse(testSecret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != "pr_abc123" {
		t.Errorf("id = %q, want pr_abc123", id)
	}
}

func TestIssueRejectsWeakSecret(t *testing.T) {
	if _, err := profile.Issue([]byte("short"), "pr_x", time.Hour); !errors.Is(err, safe.ErrSecretTooShort) {
		t.Errorf("err = %v, want ErrSecretTooShort", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := profile.Issue(testSecret, "pr_x", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other := []byte("fedcba9876543210fedcba9876543210")
	if _, err := profile.Parse(other, token); !errors.Is(err, profile.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := profile.Issue(testSecret, "pr_x", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := profile.Parse(testSecret, token); !errors.Is(err, profile.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

// WHAT: the signing method is pinned; a token signed with another HMAC
// variant is rejected even with the right secret.
func TestParseRejectsForeignSigningMethod(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"profile_id": "pr_x",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := profile.Parse(testSecret, signed); !errors.Is(err, profile.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := profile.Parse(testSecret, "not.a.token"); !errors.Is(err, profile.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func newProbe(seen *[]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = append(*seen, kit.GetProfileID(r.Context()))
	})
}

// WHAT: a cookieless request gets a freshly minted profile, and replaying
// the issued cookie keeps the same identity.
func TestMiddlewareMintsAndKeepsProfile(t *testing.T) {
	var seen []string
	h := profile.Middleware(testSecret)(newProbe(&seen))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(seen) != 1 || seen[0] == "" {
		t.Fatalf("no profile injected: %v", seen)
	}
	if !strings.HasPrefix(seen[0], "pr_") {
		t.Errorf("profile id = %q, want pr_ prefix", seen[0])
	}

	cookies := rec.Result().Cookies()
	var issued *http.Cookie
	for _, c := range cookies {
		if c.Name == profile.CookieName {
			issued = c
		}
	}
	if issued == nil {
		t.Fatal("no profile cookie issued")
	}
	if !issued.HttpOnly {
		t.Error("cookie not HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(issued)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)

	if len(seen) != 2 || seen[1] != seen[0] {
		t.Errorf("profile changed on replay: %v", seen)
	}
	for _, c := range rec2.Result().Cookies() {
		if c.Name == profile.CookieName {
			t.Error("cookie re-issued for a valid profile")
		}
	}
}

func TestMiddlewareReplacesTamperedCookie(t *testing.T) {
	var seen []string
	h := profile.Middleware(testSecret)(newProbe(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: profile.CookieName, Value: "tampered"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if len(seen) != 1 || seen[0] == "" {
		t.Fatalf("no profile injected: %v", seen)
	}
	replaced := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == profile.CookieName && c.Value != "tampered" {
			replaced = true
		}
	}
	if !replaced {
		t.Error("tampered cookie not replaced")
	}
}

func TestMiddlewareWeakSecretFailsClosed(t *testing.T) {
	var seen []string
	h := profile.Middleware([]byte("short"))(newProbe(&seen))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if len(seen) != 0 {
		t.Error("handler ran without a profile")
	}
}

func TestMiddlewareCustomGenerator(t *testing.T) {
	var seen []string
	h := profile.Middleware(testSecret, profile.WithGenerator(func() string {
		return "pr_fixed"
	}))(newProbe(&seen))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 1 || seen[0] != "pr_fixed" {
		t.Errorf("seen = %v", seen)
	}
}
