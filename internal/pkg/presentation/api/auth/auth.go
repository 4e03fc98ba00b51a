package auth

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
)

// NewAuthenticator returns the middleware chain that verifies bearer
// tokens signed with signingKey. An empty key disables authentication
// and the returned chain is empty.
func NewAuthenticator(signingKey string) []func(http.Handler) http.Handler {
	if signingKey == "" {
		return nil
	}

	tokenAuth := jwtauth.New("HS256", []byte(signingKey), nil)

	return []func(http.Handler) http.Handler{
		jwtauth.Verifier(tokenAuth),
		jwtauth.Authenticator(tokenAuth),
	}
}
