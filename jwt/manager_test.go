package jwt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestPair(t *testing.T, method SigningMethod) (*Manager, *Manager, *testClock) {
	t.Helper()

	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	access, refresh, err := NewPair(Config{
		SigningMethod: method,
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Leeway:        30 * time.Second,
		Issuer:        "goGuard-test",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	return access, refresh, clock
}

func TestIssueAndParse(t *testing.T) {
	for _, method := range []SigningMethod{MethodHS256, MethodEd25519} {
		t.Run(string(method), func(t *testing.T) {
			access, _, clock := newTestPair(t, method)

			tok, issued, err := access.Issue("u1", "sid-1")
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			claims, err := access.Parse(tok)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if claims.Principal() != "u1" || claims.SID != "sid-1" || claims.Kind != KindAccess {
				t.Fatalf("unexpected claims %+v", claims)
			}
			if !ExpiresAt(claims).Equal(clock.t.Add(15 * time.Minute)) {
				t.Fatalf("unexpected expiry %v", ExpiresAt(claims))
			}
			if issued.ID == "" || issued.ID != claims.ID {
				t.Fatal("expected a token id")
			}
		})
	}
}

func TestAccessAndRefreshAreNotInterchangeable(t *testing.T) {
	access, refresh, _ := newTestPair(t, MethodHS256)

	at, _, _ := access.Issue("u1", "s")
	rt, _, _ := refresh.Issue("u1", "s")

	if _, err := access.Parse(rt); !errors.Is(err, ErrMalformed) {
		t.Fatalf("access verifier must reject refresh token, got %v", err)
	}
	if _, err := refresh.Parse(at); !errors.Is(err, ErrMalformed) {
		t.Fatalf("refresh verifier must reject access token, got %v", err)
	}
}

func TestDerivedKeysDiffer(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	a, err := DeriveKey(secret, KindAccess)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	r, err := DeriveKey(secret, KindRefresh)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if bytes.Equal(a, r) || bytes.Equal(a, secret[:32]) {
		t.Fatal("derived keys must differ from each other and from the secret")
	}
	if _, err := DeriveKey([]byte("short"), KindAccess); err == nil {
		t.Fatal("short secret must be rejected")
	}
}

func TestExpiryHonoursLeewayOnly(t *testing.T) {
	access, _, clock := newTestPair(t, MethodHS256)
	tok, _, _ := access.Issue("u1", "s")

	clock.t = clock.t.Add(15*time.Minute + 20*time.Second)
	if _, err := access.Parse(tok); err != nil {
		t.Fatalf("token within leeway must parse, got %v", err)
	}

	clock.t = clock.t.Add(time.Minute)
	if _, err := access.Parse(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestTamperedTokenIsMalformed(t *testing.T) {
	access, _, clock := newTestPair(t, MethodHS256)
	tok, _, _ := access.Issue("u1", "s")

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := access.Parse(tampered); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	clock.t = clock.t.Add(time.Hour)
	if _, err := access.Parse(tampered); errors.Is(err, ErrExpired) {
		t.Fatal("bad signature must not be reported as expiry")
	}
}

func TestForeignSecretIsMalformed(t *testing.T) {
	access, _, _ := newTestPair(t, MethodHS256)
	other, _, err := NewPair(Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("ffffffffffffffffffffffffffffffff"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "goGuard-test",
	})
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	tok, _, _ := other.Issue("u1", "s")
	if _, err := access.Parse(tok); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := access.Parse("not-a-jwt"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for garbage, got %v", err)
	}
}

func TestNewPairValidation(t *testing.T) {
	base := Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("0123456789abcdef"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
	cases := map[string]func(*Config){
		"zero access ttl":      func(c *Config) { c.AccessTTL = 0 },
		"refresh not longer":   func(c *Config) { c.RefreshTTL = c.AccessTTL },
		"negative leeway":      func(c *Config) { c.Leeway = -time.Second },
		"huge leeway":          func(c *Config) { c.Leeway = time.Hour },
		"unknown method":       func(c *Config) { c.SigningMethod = "rs256" },
		"missing secret bytes": func(c *Config) { c.Secret = nil },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if _, _, err := NewPair(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, _, err := NewPair(base); err != nil {
		t.Fatalf("base config: %v", err)
	}
}

func FuzzParse(f *testing.F) {
	access, _, err := NewPair(Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("0123456789abcdef"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		f.Fatalf("NewPair: %v", err)
	}
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, s string) {
		if _, err := access.Parse(s); err == nil {
			t.Fatalf("unexpected success for %q", s)
		}
	})
}
