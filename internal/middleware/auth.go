// Package middleware contains the HTTP middleware of the budget engine.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

const staffIDKey contextKey = "staffID"

// AuthMiddleware authenticates staff requests with a signed bearer token of
// the form "{staffID}.{hex hmac}". The public acceptance routes never pass
// through it.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware creates an AuthMiddleware with the given secret. An
// empty secret is replaced by a random one, which effectively rejects every
// token minted elsewhere.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{secretKey: key}
}

// Middleware checks the Authorization header and puts the staff identifier
// into the request context.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenValue, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		staffID, ok := a.parseToken(tokenValue)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), staffIDKey, staffID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueToken signs a staff identifier into a bearer token.
func (a *AuthMiddleware) IssueToken(staffID string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(staffID))
	return staffID + "." + hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(value string) (string, bool) {
	idStr, signature, found := strings.Cut(value, ".")
	if !found || idStr == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(idStr))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", false
	}
	return idStr, true
}

// GetStaffIDFromContext extracts the staff identifier from the request context.
func GetStaffIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(staffIDKey).(string)
	return id, ok
}
