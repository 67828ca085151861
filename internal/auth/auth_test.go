package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tokens := NewTokens([]string{"alpha", "", "beta"})
	require.Equal(t, 2, tokens.Len())

	cases := []struct {
		name    string
		headers map[string][]string
		want    error
	}{
		{"none", nil, ErrMissingToken},
		{"bearer", map[string][]string{"Authorization": {"Bearer alpha"}}, nil},
		{"bearer lowercase scheme", map[string][]string{"Authorization": {"bearer beta"}}, nil},
		{"header", map[string][]string{HeaderToken: {"beta"}}, nil},
		{"unknown", map[string][]string{HeaderToken: {"gamma"}}, ErrInvalidToken},
		{"basic auth ignored", map[string][]string{"Authorization": {"Basic YWxwaGE6"}}, ErrMissingToken},
		{"empty bearer", map[string][]string{"Authorization": {"Bearer "}}, ErrMissingToken},
		{"both", map[string][]string{"Authorization": {"Bearer alpha"}, HeaderToken: {"alpha"}}, ErrTooManyTokens},
		{"repeated header", map[string][]string{HeaderToken: {"alpha", "beta"}}, ErrTooManyTokens},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/upload", nil)
			for k, vs := range tc.headers {
				for _, v := range vs {
					r.Header.Add(k, v)
				}
			}
			err := tokens.Check(r)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValid_EmptySet(t *testing.T) {
	tokens := NewTokens(nil)
	assert.False(t, tokens.Valid(""))
	assert.False(t, tokens.Valid("anything"))
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Middleware(NewTokens([]string{"secret"}), next)

	do := func(header, value string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPut, "/upload", nil)
		if header != "" {
			r.Header.Set(header, value)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w := do("", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusUnauthorized, do(HeaderToken, "wrong").Code)
	assert.Equal(t, http.StatusTeapot, do("Authorization", "Bearer secret").Code)
	assert.Equal(t, http.StatusBadRequest, Status(ErrTooManyTokens))
}
