/*
auth.go - Bearer-token authentication middleware

PURPOSE:
  Verifies the caller's identity before any workflow endpoint runs. The
  engine trusts the email placed in the request context here; it never
  re-checks credentials itself.

TOKEN FORMAT:
  HMAC-signed JWT (HS256) carrying the employee email in the subject
  claim. Tokens are issued out of band (SSO gateway or the IssueToken
  helper in development).

SEE ALSO:
  - handlers.go: reads the identity from the context
  - server.go: mounts the middleware on /api
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/vacation-engine/vacation"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity returns the verified caller email from the request context, or
// "" when the request was not authenticated.
func Identity(ctx context.Context) string {
	email, _ := ctx.Value(identityKey).(string)
	return email
}

// Authenticator verifies bearer tokens and stamps the caller identity
// into the request context.
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthenticator builds an authenticator for the given HMAC secret.
func NewAuthenticator(secret string, tokenTTL time.Duration) *Authenticator {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), tokenTTL: tokenTTL}
}

// IssueToken mints a signed token for email. Development helper; in
// production tokens come from the SSO gateway.
func (a *Authenticator) IssueToken(email string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses and validates a token, returning the subject email.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// CurrentUser returns the verified caller stamped into ctx by Middleware,
// or ErrUnauthenticated when the request carried no identity.
func (a *Authenticator) CurrentUser(ctx context.Context) (string, error) {
	email := Identity(ctx)
	if email == "" {
		return "", vacation.ErrUnauthenticated
	}
	return email, nil
}

var _ vacation.IdentityProvider = (*Authenticator)(nil)

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		email, err := a.Verify(token)
		if err != nil || email == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
