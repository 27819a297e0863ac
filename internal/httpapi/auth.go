package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type contextKey string

const claimsContextKey contextKey = "ares_claims"

// Claims is the subset of bearer-token claims the edge adapter cares
// about: which agent id the caller is acting as. ARES's own
// capability-tag Authorization dimension (pkg/validator) is a separate,
// domain-level check; this is transport identity only.
type Claims struct {
	Subject string
}

// jwtAuthenticator verifies bearer tokens against a single public key
// loaded once at startup from a local key file rather than a remote
// JWKS endpoint (ARES has no external identity provider to poll).
type jwtAuthenticator struct {
	keySet jwk.Set
}

func newJWTAuthenticator(publicKeyPath string) (*jwtAuthenticator, error) {
	raw, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("httpapi: reading jwt public key: %w", err)
	}
	key, err := jwk.ParseKey(raw, jwk.WithPEM(true))
	if err != nil {
		key, err = jwk.ParseKey(raw)
		if err != nil {
			return nil, fmt.Errorf("httpapi: parsing jwt public key: %w", err)
		}
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("httpapi: building key set: %w", err)
	}
	return &jwtAuthenticator{keySet: set}, nil
}

func (a *jwtAuthenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tok := strings.TrimPrefix(header, "Bearer ")
		if header == "" || tok == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		parsed, err := jwt.Parse([]byte(tok), jwt.WithKeySet(a.keySet), jwt.WithValidate(true))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, &Claims{Subject: parsed.Subject()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) *Claims {
	if c, ok := r.Context().Value(claimsContextKey).(*Claims); ok {
		return c
	}
	return nil
}
