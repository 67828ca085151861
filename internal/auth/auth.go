// Package auth checks the upload tokens sent with write requests.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

const (
	// HeaderToken is the alternative to an Authorization bearer token.
	HeaderToken  = "X-Upload-Token"
	bearerPrefix = "Bearer "
)

var (
	// ErrMissingToken is returned when a request carries no token.
	ErrMissingToken = errors.New("missing upload token")
	// ErrInvalidToken is returned for tokens that are not configured.
	ErrInvalidToken = errors.New("invalid upload token")
	// ErrTooManyTokens is returned when more than one token is sent.
	ErrTooManyTokens = errors.New("more than one upload token")
)

// Tokens is the set of accepted upload tokens. Only digests are kept.
type Tokens struct {
	digests [][sha256.Size]byte
}

// NewTokens builds a token set. Empty strings are ignored.
func NewTokens(tokens []string) *Tokens {
	t := &Tokens{}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		t.digests = append(t.digests, sha256.Sum256([]byte(tok)))
	}
	return t
}

// Len returns the number of configured tokens.
func (t *Tokens) Len() int { return len(t.digests) }

// Valid reports whether token is in the set. Every configured token is
// compared so the time taken does not depend on which one matched.
func (t *Tokens) Valid(token string) bool {
	d := sha256.Sum256([]byte(token))
	match := 0
	for i := range t.digests {
		match |= subtle.ConstantTimeCompare(d[:], t.digests[i][:])
	}
	return match == 1
}

// Check authenticates r.
func (t *Tokens) Check(r *http.Request) error {
	var found []string
	for _, v := range r.Header.Values("Authorization") {
		if tok, ok := cutBearer(v); ok {
			found = append(found, tok)
		}
	}
	for _, v := range r.Header.Values(HeaderToken) {
		if v = strings.TrimSpace(v); v != "" {
			found = append(found, v)
		}
	}
	switch {
	case len(found) == 0:
		return ErrMissingToken
	case len(found) > 1:
		return ErrTooManyTokens
	case !t.Valid(found[0]):
		return ErrInvalidToken
	}
	return nil
}

func cutBearer(v string) (string, bool) {
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(v[len(bearerPrefix):])
	return tok, tok != ""
}

// Status maps a Check error to an HTTP status code.
func Status(err error) int {
	if errors.Is(err, ErrTooManyTokens) {
		return http.StatusBadRequest
	}
	return http.StatusUnauthorized
}

// Middleware rejects requests that fail Check.
func Middleware(tokens *Tokens, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := tokens.Check(r); err != nil {
			if errors.Is(err, ErrMissingToken) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="upload"`)
			}
			http.Error(w, err.Error(), Status(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}
