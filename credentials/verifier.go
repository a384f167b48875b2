package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalid is returned for an unknown username or a wrong password. The
// two cases are indistinguishable to the caller.
var ErrInvalid = errors.New("invalid credentials")

// Store looks up the principal id and password hash for a username.
type Store interface {
	Credentials(ctx context.Context, username string) (principalID, passwordHash string, found bool, err error)
}

// Verifier checks passwords against hashes from a Store. Argon2id PHC
// strings and bcrypt ($2a$, $2b$, $2y$) hashes are both accepted.
type Verifier struct {
	store  Store
	argon2 *Argon2

	dummyOnce sync.Once
	dummy     string
}

// NewVerifier returns a verifier over store. A nil hasher uses
// DefaultArgon2Config.
func NewVerifier(store Store, hasher *Argon2) *Verifier {
	if hasher == nil {
		hasher, _ = NewArgon2(DefaultArgon2Config())
	}
	return &Verifier{store: store, argon2: hasher}
}

// Verify returns the principal id for valid credentials. Unknown usernames
// still pay for one hash comparison.
func (v *Verifier) Verify(ctx context.Context, username, password string) (string, error) {
	id, hash, found, err := v.store.Credentials(ctx, username)
	if err != nil {
		return "", err
	}
	if !found {
		v.dummyOnce.Do(func() {
			v.dummy, _ = v.argon2.Hash("goGuard-dummy-password")
		})
		_, _ = v.argon2.Verify(password, v.dummy)
		return "", ErrInvalid
	}
	if !v.matches(password, hash) {
		return "", ErrInvalid
	}
	return id, nil
}

func (v *Verifier) matches(password, hash string) bool {
	switch {
	case isArgon2(hash):
		ok, err := v.argon2.Verify(password, hash)
		return err == nil && ok
	case strings.HasPrefix(hash, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	default:
		return false
	}
}

// Account is one entry of a StaticStore.
type Account struct {
	PrincipalID  string
	PasswordHash string
}

// StaticStore is an in-memory Store keyed by username.
type StaticStore map[string]Account

func (s StaticStore) Credentials(_ context.Context, username string) (string, string, bool, error) {
	a, ok := s[username]
	if !ok {
		return "", "", false, nil
	}
	return a.PrincipalID, a.PasswordHash, true, nil
}
