package jwt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const minSecretLen = 16

// DeriveKey expands secret into a 32-byte key bound to kind.
func DeriveKey(secret []byte, kind Kind) ([]byte, error) {
	if len(secret) < minSecretLen {
		return nil, errors.New("signing secret too short")
	}
	r := hkdf.New(sha256.New, secret, nil, []byte("goGuard/"+string(kind)+"/v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func signingKeys(method SigningMethod, secret []byte, kind Kind) (sign, verify any, err error) {
	derived, err := DeriveKey(secret, kind)
	if err != nil {
		return nil, nil, err
	}
	switch method {
	case MethodHS256:
		return derived, derived, nil
	case MethodEd25519:
		priv := ed25519.NewKeyFromSeed(derived)
		return priv, priv.Public(), nil
	default:
		return nil, nil, errors.New("unsupported signing method")
	}
}
