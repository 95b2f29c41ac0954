package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CSRFHeader carries the token on state changing requests
const CSRFHeader = "X-CSRF-Token"

// CSRFGenerator derives CSRF tokens from the session id with HMAC-SHA256,
// so no token state is stored
type CSRFGenerator struct {
	secret []byte
}

func NewCSRFGenerator(secret string) *CSRFGenerator {
	return &CSRFGenerator{secret: []byte("csrf:" + secret)}
}

// Token returns the CSRF token for sessionID
func (g *CSRFGenerator) Token(sessionID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Valid reports whether token belongs to sessionID
func (g *CSRFGenerator) Valid(sessionID, token string) bool {
	if sessionID == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(g.Token(sessionID)), []byte(token))
}
