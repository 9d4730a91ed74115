// Package token implements the acceptance token codec for public budget links.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Codec mints and verifies tamper-evident acceptance tokens. A token is the
// hex HMAC-SHA256 of "{code}|{issueDate RFC3339}" under a server-held secret.
// Tokens never expire or rotate: they prove authenticity only, while
// timeliness is enforced separately against the budget's expiry timestamp.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with the given secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Mint derives the acceptance token for a budget code and issue date.
// The inputs are immutable after budget creation, so the token stays valid
// for the life of the budget even if other fields change.
func (c *Codec) Mint(code string, issueDate time.Time) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(code + "|" + issueDate.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the token matches the budget's code and issue date.
// The comparison is constant-time.
func (c *Codec) Verify(code string, issueDate time.Time, token string) bool {
	if token == "" {
		return false
	}
	expected := c.Mint(code, issueDate)
	return hmac.Equal([]byte(expected), []byte(token))
}
