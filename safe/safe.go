// Package safe provides the security primitives shared across vitrine:
// secret validation, URL safety checks (SSRF prevention), path traversal
// guards for export file names, and bounded I/O helpers.
package safe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// MinSecretLen is the minimum acceptable length for symmetric secrets (HMAC,
// JWT HS256, cookie signing). 32 bytes = 256 bits of entropy.
const MinSecretLen = 32

// MaxResponseBody is the default cap for HTTP response body reads (8 MiB).
// Upstream build responses carry whole converted documents, so the cap is
// wider than a typical API payload.
const MaxResponseBody int64 = 8 << 20

// MaxUploadBody is the default cap for document uploads accepted by the
// proxy and compare routes (32 MiB).
const MaxUploadBody int64 = 32 << 20

// ErrSecretTooShort is returned when a secret does not meet MinSecretLen.
var ErrSecretTooShort = fmt.Errorf("safe: secret must be at least %d bytes", MinSecretLen)

// ErrPathEscape is returned when a user-supplied name escapes its base dir.
var ErrPathEscape = errors.New("safe: path escapes base directory")

// ErrPrivateAddress is returned when a URL targets a private or loopback
// address.
var ErrPrivateAddress = errors.New("safe: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("safe: only http and https schemes are allowed")

// ErrBodyTooLarge is returned by ReadAllCapped when the reader exceeds the
// given limit.
var ErrBodyTooLarge = errors.New("safe: body exceeds size limit")

// CheckSecret checks that secret is at least MinSecretLen bytes.
func CheckSecret(secret []byte) error {
	if len(secret) < MinSecretLen {
		return ErrSecretTooShort
	}
	return nil
}

// JoinUnder joins base and name and verifies the result stays under base.
// name comes from user input (an upload file name, a sample ID); any ".."
// component or absolute redirection is rejected with ErrPathEscape.
func JoinUnder(base, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrPathEscape
	}
	joined := filepath.Join(base, filepath.Clean("/"+name))
	if !strings.HasPrefix(joined, filepath.Clean(base)+string(filepath.Separator)) &&
		joined != filepath.Clean(base) {
		return "", ErrPathEscape
	}
	return joined, nil
}

// CleanExportName reduces a user-supplied file name to a flat, filesystem
// safe base name for export side-writes. Directory components are stripped,
// control and separator characters are replaced, and an empty result falls
// back to fallback.
func CleanExportName(name, fallback string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, r == '/', r == '\\', r == ':':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "._ ")
	if out == "" {
		return fallback
	}
	return out
}

// CheckURL checks that rawURL uses http/https, has a hostname, and does not
// resolve to a private or loopback IP (SSRF prevention). DNS resolution is
// performed to catch rebinding via internal hostnames.
func CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("safe: URL has no host")
	}

	// Check literal IP first.
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateAddress
		}
		return nil
	}

	// Resolve hostname and check all addresses.
	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure: allow through. A valid external host may be
		// temporarily unresolvable, and the caller gets a network error at
		// connection time anyway.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrPrivateAddress
		}
	}
	return nil
}

// CheckIdentifier rejects identifiers that contain characters unsuitable for
// SQL identifiers, file names, or URL path segments. Allows alphanumeric,
// underscore, hyphen, and dot. Sample IDs, container IDs, and saved-state
// keys all pass through here before reaching storage.
func CheckIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("safe: identifier must not be empty")
	}
	if len(s) > 256 {
		return fmt.Errorf("safe: identifier too long (max 256)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("safe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// ReadAllCapped reads at most maxBytes from r. Returns ErrBodyTooLarge if
// the limit is exceeded.
func ReadAllCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrBodyTooLarge, maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.' || r == ':'
}

func isPrivateIP(ip net.IP) bool {
	// Loopback
	if ip.IsLoopback() {
		return true
	}
	// Link-local
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	// RFC 1918 / RFC 4193
	privateRanges := []struct {
		network string
	}{
		{"10.0.0.0/8"},
		{"172.16.0.0/12"},
		{"192.168.0.0/16"},
		{"fc00::/7"},
		{"169.254.0.0/16"},
		{"::1/128"},
	}
	for _, pr := range privateRanges {
		_, cidr, err := net.ParseCIDR(pr.network)
		if err != nil {
			continue
		}
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
