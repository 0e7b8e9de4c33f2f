// Package profile gives every visitor a stable anonymous identity.
//
// The gallery keeps saved annotation states per browser, so each visitor
// carries a signed profile cookie. The middleware validates it on every
// request and mints a fresh profile when the cookie is missing or invalid;
// downstream handlers always see a profile ID in the request context.
//
// Tokens are HS256 JWTs with the signing method pinned, never negotiated
// from the token header.
package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hazyhaar/vitrine/safe"
)

// CookieName is the profile cookie.
const CookieName = "vitrine_profile"

// DefaultTTL keeps a profile alive roughly as long as a browser keeps its
// localStorage: long enough that returning visitors find their saves.
const DefaultTTL = 180 * 24 * time.Hour

// ErrInvalidToken covers every validation failure: bad signature, expired,
// wrong method, malformed claims.
var ErrInvalidToken = errors.New("profile: invalid token")

// claims is the JWT payload. Only the profile ID travels in the cookie;
// everything else about a visitor stays server-side.
type claims struct {
	jwt.RegisteredClaims
	ProfileID string `json:"profile_id"`
}

// Issue signs a token carrying profileID, valid for ttl.
func Issue(secret []byte, profileID string, ttl time.Duration) (string, error) {
	if err := safe.CheckSecret(secret); err != nil {
		return "", fmt.Errorf("profile: %w", err)
	}
	if profileID == "" {
		return "", errors.New("profile: empty profile id")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ProfileID: profileID,
	})
	return token.SignedString(secret)
}

// Parse validates a token and returns the profile ID it carries.
func Parse(secret []byte, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v (only HS256 allowed)", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.ProfileID == "" {
		return "", ErrInvalidToken
	}
	return c.ProfileID, nil
}
