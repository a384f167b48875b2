package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/lock"
	"github.com/MrEthical07/goGuard/session"
)

var now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeSigner struct {
	mu     sync.Mutex
	prefix string
	seq    int
	issued map[string]*jwt.Claims
	errs   map[string]error
}

func newSigner(prefix string) *fakeSigner {
	return &fakeSigner{prefix: prefix, issued: map[string]*jwt.Claims{}, errs: map[string]error{}}
}

func (s *fakeSigner) Issue(principal, sid string) (string, *jwt.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	tok := fmt.Sprintf("%s-%s-%d", s.prefix, sid, s.seq)
	c := &jwt.Claims{SID: sid, RegisteredClaims: gojwt.RegisteredClaims{
		Subject:   principal,
		ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
	}}
	s.issued[tok] = c
	return tok, c, nil
}

func (s *fakeSigner) Parse(tok string) (*jwt.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[tok]; ok {
		return nil, err
	}
	c, ok := s.issued[tok]
	if !ok {
		return nil, jwt.ErrMalformed
	}
	return c, nil
}

type fakeRegistry struct {
	mu        sync.Mutex
	entries   map[string]session.Entry
	refresh   map[string]string
	err       error
	lastReg   session.Registration
	regErr    error
	revokeErr error
}

func newRegistry() *fakeRegistry {
	return &fakeRegistry{entries: map[string]session.Entry{}, refresh: map[string]string{}}
}

func (r *fakeRegistry) Register(_ context.Context, principal string, reg session.Registration) ([]session.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastReg = reg
	if r.regErr != nil {
		return nil, r.regErr
	}
	if reg.Replaces != "" {
		if r.refresh[principal+"/"+reg.Replaces] != reg.ExpectRefresh {
			return nil, session.ErrSuperseded
		}
		delete(r.entries, principal+"/"+reg.Replaces)
		delete(r.refresh, principal+"/"+reg.Replaces)
	}
	r.entries[principal+"/"+reg.Entry.SessionID] = reg.Entry
	r.refresh[principal+"/"+reg.Entry.SessionID] = reg.RefreshToken
	return nil, nil
}

func (r *fakeRegistry) Lookup(_ context.Context, principal, sid string) (session.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return session.Entry{}, false, r.err
	}
	e, ok := r.entries[principal+"/"+sid]
	return e, ok, nil
}

func (r *fakeRegistry) Remove(_ context.Context, principal, sid string) (session.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return session.Entry{}, false, r.err
	}
	e, ok := r.entries[principal+"/"+sid]
	delete(r.entries, principal+"/"+sid)
	delete(r.refresh, principal+"/"+sid)
	return e, ok, nil
}

func (r *fakeRegistry) RevokeAll(_ context.Context, principal string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revokeErr != nil {
		return 0, r.revokeErr
	}
	n := len(r.entries)
	r.entries = map[string]session.Entry{}
	r.refresh = map[string]string{}
	return n, nil
}

func (r *fakeRegistry) LoadRefresh(_ context.Context, principal, sid string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", false, r.err
	}
	tok, ok := r.refresh[principal+"/"+sid]
	return tok, ok, nil
}

type fakeDenylist struct {
	revoked map[string]bool
	err     error
}

func (d *fakeDenylist) IsRevoked(_ context.Context, tok string) (bool, error) {
	return d.revoked[tok], d.err
}

type fixture struct {
	access, refresh *fakeSigner
	registry        *fakeRegistry
	deny            *fakeDenylist
	seq             int
}

func newFixture() *fixture {
	return &fixture{
		access:   newSigner("a"),
		refresh:  newSigner("r"),
		registry: newRegistry(),
		deny:     &fakeDenylist{revoked: map[string]bool{}},
	}
}

func (f *fixture) issueDeps() IssueDeps {
	return IssueDeps{
		NewSessionID: func() string { f.seq++; return fmt.Sprintf("s%d", f.seq) },
		Now:          func() time.Time { return now },
		Access:       f.access,
		Refresh:      f.refresh,
		Registry:     f.registry,
		MaxSessions:  5,
		Evict:        true,
	}
}

func (f *fixture) validateDeps() ValidateDeps {
	return ValidateDeps{Access: f.access, Revocation: f.deny, Registry: f.registry}
}

func (f *fixture) refreshDeps(exclusive func(context.Context, string, func(context.Context) error) error) RefreshDeps {
	if exclusive == nil {
		exclusive = func(ctx context.Context, _ string, fn func(context.Context) error) error { return fn(ctx) }
	}
	return RefreshDeps{
		Refresh:      f.refresh,
		Registry:     f.registry,
		RunExclusive: exclusive,
		Issue: func(ctx context.Context, p string, rot *Rotation) IssueResult {
			return RunIssue(ctx, p, rot, f.issueDeps())
		},
	}
}

func TestIssueThenValidate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res := RunIssue(ctx, "u1", nil, f.issueDeps())
	if res.Failure != FailureNone {
		t.Fatalf("issue failed: %v %v", res.Failure, res.Err)
	}
	if f.registry.lastReg.Entry.ExpiresAt != now.Add(time.Hour).UnixMilli() {
		t.Fatalf("entry expiry not taken from access claims: %d", f.registry.lastReg.Entry.ExpiresAt)
	}
	if f.registry.lastReg.MaxSessions != 5 || !f.registry.lastReg.Evict {
		t.Fatalf("limit settings not forwarded: %+v", f.registry.lastReg)
	}

	v := RunValidate(ctx, res.AccessToken, f.validateDeps())
	if v.Failure != FailureNone || v.Claims.Principal() != "u1" {
		t.Fatalf("validate: %v %+v", v.Failure, v.Claims)
	}
}

func TestValidateFailureKinds(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed", func(t *testing.T) {
		f := newFixture()
		if got := RunValidate(ctx, "garbage", f.validateDeps()).Failure; got != FailureMalformed {
			t.Fatalf("got %v", got)
		}
	})
	t.Run("expired", func(t *testing.T) {
		f := newFixture()
		f.access.errs["old"] = fmt.Errorf("%w: past exp", jwt.ErrExpired)
		if got := RunValidate(ctx, "old", f.validateDeps()).Failure; got != FailureExpired {
			t.Fatalf("got %v", got)
		}
	})
	t.Run("revoked", func(t *testing.T) {
		f := newFixture()
		res := RunIssue(ctx, "u1", nil, f.issueDeps())
		f.deny.revoked[res.AccessToken] = true
		if got := RunValidate(ctx, res.AccessToken, f.validateDeps()).Failure; got != FailureRevoked {
			t.Fatalf("got %v", got)
		}
	})
	t.Run("superseded", func(t *testing.T) {
		f := newFixture()
		res := RunIssue(ctx, "u1", nil, f.issueDeps())
		if _, _, err := f.registry.Remove(ctx, "u1", res.SessionID); err != nil {
			t.Fatal(err)
		}
		if got := RunValidate(ctx, res.AccessToken, f.validateDeps()).Failure; got != FailureSuperseded {
			t.Fatalf("got %v", got)
		}
	})
	t.Run("denylist unavailable", func(t *testing.T) {
		f := newFixture()
		res := RunIssue(ctx, "u1", nil, f.issueDeps())
		f.deny.err = session.ErrStoreUnavailable
		if got := RunValidate(ctx, res.AccessToken, f.validateDeps()).Failure; got != FailureStoreUnavailable {
			t.Fatalf("got %v", got)
		}
	})
	t.Run("registry unavailable", func(t *testing.T) {
		f := newFixture()
		res := RunIssue(ctx, "u1", nil, f.issueDeps())
		f.registry.err = session.ErrStoreUnavailable
		if got := RunValidate(ctx, res.AccessToken, f.validateDeps()).Failure; got != FailureStoreUnavailable {
			t.Fatalf("got %v", got)
		}
	})
}

func TestIssueClassifiesRegistryErrors(t *testing.T) {
	cases := []struct {
		err  error
		want FailureKind
	}{
		{session.ErrSessionLimitReached, FailureSessionLimit},
		{lock.ErrContention, FailureLockContention},
		{&lock.ContentionError{Key: "session:u1"}, FailureLockContention},
		{lock.ErrUnavailable, FailureStoreUnavailable},
		{session.ErrStoreUnavailable, FailureStoreUnavailable},
		{errors.New("boom"), FailureInternal},
	}
	for _, tc := range cases {
		f := newFixture()
		f.registry.regErr = tc.err
		if got := RunIssue(context.Background(), "u1", nil, f.issueDeps()).Failure; got != tc.want {
			t.Fatalf("%v: got %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestRefreshRotates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := RunIssue(ctx, "u1", nil, f.issueDeps())

	var lockName string
	res := RunRefresh(ctx, first.RefreshToken, f.refreshDeps(func(ctx context.Context, name string, fn func(context.Context) error) error {
		lockName = name
		return fn(ctx)
	}))
	if res.Failure != FailureNone {
		t.Fatalf("refresh failed: %v %v", res.Failure, res.Err)
	}
	if lockName != RefreshLockName(first.RefreshToken) {
		t.Fatalf("refresh ran under lock %q", lockName)
	}
	if f.registry.lastReg.Replaces != first.SessionID || f.registry.lastReg.ExpectRefresh != first.RefreshToken {
		t.Fatalf("rotation not forwarded: %+v", f.registry.lastReg)
	}
	if got := RunValidate(ctx, first.AccessToken, f.validateDeps()).Failure; got != FailureSuperseded {
		t.Fatalf("old access token should be superseded, got %v", got)
	}

	again := RunRefresh(ctx, first.RefreshToken, f.refreshDeps(nil))
	if again.Failure != FailureSuperseded {
		t.Fatalf("reused refresh token should be superseded, got %v", again.Failure)
	}
}

func TestRefreshFailureKinds(t *testing.T) {
	ctx := context.Background()

	t.Run("contention", func(t *testing.T) {
		f := newFixture()
		first := RunIssue(ctx, "u1", nil, f.issueDeps())
		held := func(context.Context, string, func(context.Context) error) error {
			return &lock.ContentionError{Key: "refresh"}
		}
		res := RunRefresh(ctx, first.RefreshToken, f.refreshDeps(held))
		if res.Failure != FailureLockContention {
			t.Fatalf("got %v", res.Failure)
		}
		if tok, _, _ := f.registry.LoadRefresh(ctx, "u1", first.SessionID); tok != first.RefreshToken {
			t.Fatal("contention must leave the refresh record untouched")
		}
	})
	t.Run("store unavailable", func(t *testing.T) {
		f := newFixture()
		first := RunIssue(ctx, "u1", nil, f.issueDeps())
		f.registry.err = session.ErrStoreUnavailable
		if res := RunRefresh(ctx, first.RefreshToken, f.refreshDeps(nil)); res.Failure != FailureStoreUnavailable {
			t.Fatalf("got %v", res.Failure)
		}
	})
	t.Run("lock store unavailable", func(t *testing.T) {
		f := newFixture()
		first := RunIssue(ctx, "u1", nil, f.issueDeps())
		down := func(context.Context, string, func(context.Context) error) error { return lock.ErrUnavailable }
		if res := RunRefresh(ctx, first.RefreshToken, f.refreshDeps(down)); res.Failure != FailureStoreUnavailable {
			t.Fatalf("got %v", res.Failure)
		}
	})
	t.Run("access token presented", func(t *testing.T) {
		f := newFixture()
		first := RunIssue(ctx, "u1", nil, f.issueDeps())
		if res := RunRefresh(ctx, first.AccessToken, f.refreshDeps(nil)); res.Failure != FailureMalformed {
			t.Fatalf("got %v", res.Failure)
		}
	})
}

func TestRevokeAndLogout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := RunIssue(ctx, "u1", nil, f.issueDeps())
	b := RunIssue(ctx, "u1", nil, f.issueDeps())

	out := RunLogout(ctx, a.AccessToken, f.validateDeps())
	if out.Failure != FailureNone || !out.Removed {
		t.Fatalf("logout: %+v", out)
	}
	if got := RunValidate(ctx, b.AccessToken, f.validateDeps()).Failure; got != FailureNone {
		t.Fatalf("other session must survive logout, got %v", got)
	}

	if res := RunRevoke(ctx, "u1", f.registry); res.Failure != FailureNone || res.Revoked != 1 {
		t.Fatalf("revoke: %+v", res)
	}

	f.registry.revokeErr = &lock.ContentionError{Key: "session:u1"}
	if res := RunRevoke(ctx, "u1", f.registry); res.Failure != FailureLockContention {
		t.Fatalf("revoke under contention: %+v", res)
	}
}

type fakeLimiter struct {
	limited    bool
	checkErr   error
	increments int
	resets     int
}

var errLimited = errors.New("limited")

func (l *fakeLimiter) CheckLogin(context.Context, string, string) error {
	if l.checkErr != nil {
		return l.checkErr
	}
	if l.limited {
		return errLimited
	}
	return nil
}
func (l *fakeLimiter) IncrementLogin(context.Context, string, string) error { l.increments++; return nil }
func (l *fakeLimiter) ResetLogin(context.Context, string, string) error     { l.resets++; return nil }

func TestRunLogin(t *testing.T) {
	ctx := context.Background()
	verify := func(_ context.Context, u, p string) (string, error) {
		if u == "alice" && p == "pw" {
			return "u-alice", nil
		}
		return "", errors.New("nope")
	}
	issued := 0
	issue := func(context.Context, string) IssueResult { issued++; return IssueResult{AccessToken: "a"} }

	lim := &fakeLimiter{}
	deps := LoginDeps{Verify: verify, Limiter: lim, RateLimited: errLimited, Issue: issue}

	if res := RunLogin(ctx, "alice", "bad", "1.2.3.4", deps); res.Failure != FailureInvalidCredentials || lim.increments != 1 {
		t.Fatalf("bad password: %+v increments=%d", res, lim.increments)
	}
	if res := RunLogin(ctx, "alice", "pw", "1.2.3.4", deps); res.Failure != FailureNone || res.Principal != "u-alice" || lim.resets != 1 {
		t.Fatalf("good password: %+v resets=%d", res, lim.resets)
	}

	lim.limited = true
	if res := RunLogin(ctx, "alice", "pw", "1.2.3.4", deps); res.Failure != FailureRateLimited {
		t.Fatalf("limited: %+v", res)
	}
	lim.limited, lim.checkErr = false, errors.New("redis down")
	if res := RunLogin(ctx, "alice", "pw", "1.2.3.4", deps); res.Failure != FailureStoreUnavailable {
		t.Fatalf("limiter down: %+v", res)
	}
	if issued != 1 {
		t.Fatalf("expected exactly one issue, got %d", issued)
	}
}
