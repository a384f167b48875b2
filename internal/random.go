package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is a random 128-bit session identifier.
type SessionID [16]byte

// NewSessionID reads a fresh identifier from crypto/rand.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

// String encodes the identifier as unpadded base64url.
func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes an identifier produced by String.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// MustSessionID returns a new identifier as a string and panics if the
// system random source fails.
func MustSessionID() string {
	sid, err := NewSessionID()
	if err != nil {
		panic("goGuard: crypto/rand failure: " + err.Error())
	}
	return sid.String()
}
