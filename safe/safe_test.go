package safe

import (
	"bytes"
	"net"
	"strings"
	"testing"
)

func TestCheckSecret(t *testing.T) {
	if err := CheckSecret([]byte("short")); err == nil {
		t.Fatal("expected error for short secret")
	}
	if err := CheckSecret(bytes.Repeat([]byte("a"), MinSecretLen)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJoinUnder(t *testing.T) {
	tests := []struct {
		base, name string
		wantErr    bool
	}{
		{"/data/exports", "report.md", false},
		{"/data/exports", "../etc/passwd", true},
		{"/data/exports", "a/../b.md", true},
		{"/data/exports", "a/../../outside.md", true},
		{"/data/exports", "invoice_2024.pdf.md", false},
	}
	for _, tt := range tests {
		_, err := JoinUnder(tt.base, tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("JoinUnder(%q, %q) error=%v, wantErr=%v", tt.base, tt.name, err, tt.wantErr)
		}
	}
}

func TestCleanExportName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"  spaced.pdf ", "spaced.pdf"},
		{"/etc/passwd", "passwd"},
		{"a/b/c.pdf", "c.pdf"},
		{"", "document"},
		{"...", "document"},
		{"bad:col.pdf", "bad_col.pdf"},
	}
	for _, tt := range tests {
		if got := CleanExportName(tt.in, "document"); got != tt.want {
			t.Errorf("CleanExportName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/doc.pdf", false},
		{"http://example.com/doc.pdf", false},
		{"ftp://evil.com/data", true},      // bad scheme
		{"javascript:alert(1)", true},      // bad scheme
		{"http://127.0.0.1/admin", true},   // loopback
		{"http://10.0.0.1/internal", true}, // private
		{"http://192.168.1.1/api", true},   // private
		{"http://[::1]/api", true},         // IPv6 loopback
		{"http://172.16.0.1/secret", true}, // private
	}
	for _, tt := range tests {
		err := CheckURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckURL(%q) error=%v, wantErr=%v", tt.url, err, tt.wantErr)
		}
	}
}

func TestCheckIdentifier(t *testing.T) {
	if err := CheckIdentifier("instant.savedState.2024-01-15T10:30:00.000Z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckIdentifier("../etc/passwd"); err == nil {
		t.Fatal("expected error for path traversal chars")
	}
	if err := CheckIdentifier(""); err == nil {
		t.Fatal("expected error for empty identifier")
	}
	if err := CheckIdentifier("has spaces"); err == nil {
		t.Fatal("expected error for spaces")
	}
	long := strings.Repeat("a", 257)
	if err := CheckIdentifier(long); err == nil {
		t.Fatal("expected error for long identifier")
	}
}

func TestReadAllCapped(t *testing.T) {
	data := strings.Repeat("x", 100)
	got, err := ReadAllCapped(strings.NewReader(data), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}

	_, err = ReadAllCapped(strings.NewReader(data), 50)
	if err == nil {
		t.Fatal("expected error for oversized read")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.0.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"::1", true},
	}
	for _, tt := range tests {
		ip := net.ParseIP(tt.ip)
		if ip == nil {
			t.Fatalf("failed to parse IP %q", tt.ip)
		}
		if got := isPrivateIP(ip); got != tt.private {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
		}
	}
}
