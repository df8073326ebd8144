package attendance

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	tokenPrefix = "qr_"
	tokenBytes  = 32
)

// NewToken returns an unguessable, URL and QR safe session token.
func NewToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic("attendance: read random token: " + err.Error())
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(b)
}
