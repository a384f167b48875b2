package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	goGuard "github.com/MrEthical07/goGuard"
)

var _ goGuard.CredentialVerifier = (*Verifier)(nil)

func fastArgon2(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

type failingStore struct{ err error }

func (f failingStore) Credentials(context.Context, string) (string, string, bool, error) {
	return "", "", false, f.err
}

func TestVerifierArgon2(t *testing.T) {
	h := fastArgon2(t)
	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	v := NewVerifier(StaticStore{"alice": {PrincipalID: "u-1", PasswordHash: hash}}, h)
	ctx := context.Background()

	id, err := v.Verify(ctx, "alice", "correct horse")
	if err != nil || id != "u-1" {
		t.Fatalf("expected u-1, got %q err=%v", id, err)
	}
	if _, err := v.Verify(ctx, "alice", "wrong horse"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong password, got %v", err)
	}
	if _, err := v.Verify(ctx, "mallory", "correct horse"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown user, got %v", err)
	}
}

func TestVerifierAcceptsBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	v := NewVerifier(StaticStore{"bob": {PrincipalID: "u-2", PasswordHash: string(legacy)}}, fastArgon2(t))

	id, err := v.Verify(context.Background(), "bob", "legacy-secret")
	if err != nil || id != "u-2" {
		t.Fatalf("expected u-2, got %q err=%v", id, err)
	}
	if _, err := v.Verify(context.Background(), "bob", "nope"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifierRejectsUnknownHashFormat(t *testing.T) {
	v := NewVerifier(StaticStore{"eve": {PrincipalID: "u-3", PasswordHash: "plaintext"}}, fastArgon2(t))
	if _, err := v.Verify(context.Background(), "eve", "plaintext"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifierPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	v := NewVerifier(failingStore{err: boom}, fastArgon2(t))
	if _, err := v.Verify(context.Background(), "alice", "x"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestArgon2HashFormat(t *testing.T) {
	h := fastArgon2(t)
	hash, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
}

func TestArgon2Rejects(t *testing.T) {
	h := fastArgon2(t)

	if _, err := h.Hash("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
	if _, err := h.Hash(strings.Repeat("a", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatal("expected oversized password to be rejected")
	}
	if _, err := h.Verify("password", "not-a-phc-hash"); err == nil {
		t.Fatal("expected malformed hash to fail")
	}

	hash, err := h.Hash("version-test")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := h.Verify("version-test", strings.Replace(hash, "$v=19$", "$v=18$", 1)); err == nil {
		t.Fatal("expected unsupported version to fail")
	}
	if _, err := NewArgon2(Argon2Config{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}
}

func TestArgon2NeedsRehash(t *testing.T) {
	weak := fastArgon2(t)
	hash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	strong, err := NewArgon2(Argon2Config{Memory: 16 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	if need, err := strong.NeedsRehash(hash); err != nil || !need {
		t.Fatalf("expected rehash, need=%v err=%v", need, err)
	}
	if need, err := weak.NeedsRehash(hash); err != nil || need {
		t.Fatalf("expected no rehash, need=%v err=%v", need, err)
	}
}
