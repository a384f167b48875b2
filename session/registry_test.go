package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGuard/lock"
)

type registryFixture struct {
	mr   *miniredis.Miniredis
	reg  *Registry
	deny *Denylist
	now  time.Time
}

func newRegistryTest(t *testing.T) (*registryFixture, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	f := &registryFixture{mr: mr, now: time.Unix(1_700_000_000, 0)}
	cfg := Config{
		SessionTTL: 15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ClockSkew:  30 * time.Second,
		LockWait:   5 * time.Second,
		Now:        func() time.Time { return f.now },
	}
	f.deny = NewDenylist(rdb, cfg)
	f.reg = NewRegistry(rdb, lock.New(rdb, lock.Config{}), f.deny, cfg)

	return f, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func (f *registryFixture) registration(sid string, max int, evict bool) Registration {
	return Registration{
		Entry: Entry{
			SessionID:   sid,
			AccessToken: "access-" + sid,
			CreatedAt:   f.now.UnixMilli(),
			ExpiresAt:   f.now.Add(15 * time.Minute).UnixMilli(),
		},
		MaxSessions:      max,
		Evict:            evict,
		RefreshToken:     "refresh-" + sid,
		RefreshExpiresAt: f.now.Add(24 * time.Hour).UnixMilli(),
	}
}

func sessionIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SessionID
	}
	return out
}

func TestRegisterEvictsOldestAndRevokesIt(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	for _, sid := range []string{"s1", "s2"} {
		if _, err := f.reg.Register(ctx, "u1", f.registration(sid, 2, true)); err != nil {
			t.Fatalf("Register %s: %v", sid, err)
		}
	}
	evicted, err := f.reg.Register(ctx, "u1", f.registration("s3", 2, true))
	if err != nil {
		t.Fatalf("Register s3: %v", err)
	}
	if len(evicted) != 1 || evicted[0].SessionID != "s1" {
		t.Fatalf("expected s1 evicted, got %v", sessionIDs(evicted))
	}

	live, err := f.reg.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if got := fmt.Sprint(sessionIDs(live)); got != "[s2 s3]" {
		t.Fatalf("unexpected live sessions %s", got)
	}

	revoked, err := f.deny.IsRevoked(ctx, "access-s1")
	if err != nil || !revoked {
		t.Fatalf("evicted access token must be revoked, revoked=%v err=%v", revoked, err)
	}
	if _, ok, _ := f.reg.LoadRefresh(ctx, "u1", "s1"); ok {
		t.Fatal("evicted session refresh record must be removed")
	}
	if tok, ok, _ := f.reg.LoadRefresh(ctx, "u1", "s3"); !ok || tok != "refresh-s3" {
		t.Fatalf("expected refresh record for s3, got %q ok=%v", tok, ok)
	}
}

func TestRegisterWithoutEvictionFailsAtLimit(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	if _, err := f.reg.Register(ctx, "u1", f.registration("s1", 1, false)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := f.reg.Register(ctx, "u1", f.registration("s2", 1, false))
	if !errors.Is(err, ErrSessionLimitReached) {
		t.Fatalf("expected ErrSessionLimitReached, got %v", err)
	}

	live, _ := f.reg.Sessions(ctx, "u1")
	if len(live) != 1 || live[0].SessionID != "s1" {
		t.Fatalf("existing session must be kept, got %v", sessionIDs(live))
	}
	if _, ok, _ := f.reg.LoadRefresh(ctx, "u1", "s2"); ok {
		t.Fatal("rejected registration must not store a refresh record")
	}
}

func TestRegisterPersistsListWithSessionTTL(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()

	if _, err := f.reg.Register(context.Background(), "u1", f.registration("s1", 0, false)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if ttl := f.mr.TTL("gg:sess:u1"); ttl != 15*time.Minute {
		t.Fatalf("expected list ttl 15m, got %v", ttl)
	}
	if ttl := f.mr.TTL("gg:rt:u1"); ttl != 24*time.Hour {
		t.Fatalf("expected refresh ttl 24h, got %v", ttl)
	}
}

func TestExpiredEntriesDoNotCountTowardLimit(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	if _, err := f.reg.Register(ctx, "u1", f.registration("old", 1, false)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.now = f.now.Add(16 * time.Minute)
	if _, err := f.reg.Register(ctx, "u1", f.registration("new", 1, false)); err != nil {
		t.Fatalf("expired entry must be pruned before the limit check: %v", err)
	}
	if _, ok, _ := f.reg.Lookup(ctx, "u1", "old"); ok {
		t.Fatal("expired entry must not be returned")
	}
}

func TestRegisterReplacesRotatedSession(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	if _, err := f.reg.Register(ctx, "u1", f.registration("s1", 1, false)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	next := f.registration("s2", 1, false)
	next.Replaces = "s1"
	if _, err := f.reg.Register(ctx, "u1", next); err != nil {
		t.Fatalf("rotation must free the slot of the replaced session: %v", err)
	}

	if revoked, _ := f.deny.IsRevoked(ctx, "access-s1"); !revoked {
		t.Fatal("replaced access token must be revoked")
	}
	if _, ok, _ := f.reg.LoadRefresh(ctx, "u1", "s1"); ok {
		t.Fatal("replaced refresh record must be removed")
	}
	if e, ok, _ := f.reg.Lookup(ctx, "u1", "s2"); !ok || e.AccessToken != "access-s2" {
		t.Fatalf("expected s2 registered, got %+v ok=%v", e, ok)
	}
}

func TestRemoveDropsSingleSession(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	for _, sid := range []string{"a", "b"} {
		if _, err := f.reg.Register(ctx, "u1", f.registration(sid, 0, false)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	removed, ok, err := f.reg.Remove(ctx, "u1", "a")
	if err != nil || !ok || removed.SessionID != "a" {
		t.Fatalf("Remove: %+v ok=%v err=%v", removed, ok, err)
	}
	if revoked, _ := f.deny.IsRevoked(ctx, "access-a"); !revoked {
		t.Fatal("removed token must be revoked")
	}
	if _, ok, _ := f.reg.Lookup(ctx, "u1", "b"); !ok {
		t.Fatal("other session must survive")
	}
	if _, ok, _ := f.reg.Remove(ctx, "u1", "a"); ok {
		t.Fatal("second remove must report not found")
	}
}

func TestRevokeAllClearsEverything(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	for _, sid := range []string{"a", "b", "c"} {
		if _, err := f.reg.Register(ctx, "u1", f.registration(sid, 0, false)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	n, err := f.reg.RevokeAll(ctx, "u1")
	if err != nil || n != 3 {
		t.Fatalf("RevokeAll: n=%d err=%v", n, err)
	}
	for _, sid := range []string{"a", "b", "c"} {
		if revoked, _ := f.deny.IsRevoked(ctx, "access-"+sid); !revoked {
			t.Fatalf("token %s must be revoked", sid)
		}
	}
	if f.mr.Exists("gg:sess:u1") || f.mr.Exists("gg:rt:u1") {
		t.Fatal("list and refresh records must be deleted")
	}
}

func TestRevokeAllWithNoSessionsIsNoop(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()

	n, err := f.reg.RevokeAll(context.Background(), "nobody")
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, n=%d err=%v", n, err)
	}
}

func TestConcurrentRegisterNeverExceedsLimit(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		evicted int
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ev, err := f.reg.Register(context.Background(), "u1", f.registration(fmt.Sprintf("s%02d", i), 3, true))
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			mu.Lock()
			evicted += len(ev)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	live, err := f.reg.Sessions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(live) != 3 {
		t.Fatalf("expected 3 live sessions, got %d", len(live))
	}
	if evicted != workers-3 {
		t.Fatalf("expected %d evictions, got %d", workers-3, evicted)
	}
}

func TestRegisterFailsOnHeldPrincipalLock(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	defer rdb.Close()
	locks := lock.New(rdb, lock.Config{})
	if ok, _ := locks.TryAcquire(ctx, "session:u1", time.Minute); !ok {
		t.Fatal("expected to hold lock")
	}

	reg := NewRegistry(rdb, locks, f.deny, Config{LockWait: 50 * time.Millisecond})
	_, err := reg.Register(ctx, "u1", f.registration("s1", 0, false))
	if !errors.Is(err, lock.ErrContention) {
		t.Fatalf("expected lock contention, got %v", err)
	}
}

func TestStoreFailureIsNotNotFound(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	f.mr.SetError("ERR injected failure")

	if _, _, err := f.reg.Lookup(ctx, "u1", "s1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Lookup: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := f.deny.IsRevoked(ctx, "tok"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("IsRevoked: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := f.reg.Register(ctx, "u1", f.registration("s1", 0, false)); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Register: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestEstimateActivePrincipals(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	for _, p := range []string{"u1", "u2", "u3"} {
		if _, err := f.reg.Register(ctx, p, f.registration("s", 0, false)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	n, err := f.reg.EstimateActivePrincipals(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3, got %d err=%v", n, err)
	}
}

func TestRegisterRejectsStaleRotation(t *testing.T) {
	f, done := newRegistryTest(t)
	defer done()
	ctx := context.Background()

	if _, err := f.reg.Register(ctx, "u1", f.registration("s1", 0, false)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.reg.RevokeAll(ctx, "u1"); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	next := f.registration("s2", 0, false)
	next.Replaces = "s1"
	next.ExpectRefresh = "refresh-s1"
	if _, err := f.reg.Register(ctx, "u1", next); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("rotation after RevokeAll must fail, got %v", err)
	}
	if f.mr.Exists("gg:sess:u1") {
		t.Fatal("no session may be created after RevokeAll")
	}
}

func TestPingIsBoundedByOpTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		ContextTimeoutEnabled: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		MaxRetries:            -1,
	})
	defer rdb.Close()

	reg := NewRegistry(rdb, lock.New(rdb, lock.Config{}), nil, Config{OpTimeout: 100 * time.Millisecond})

	start := time.Now()
	_, err = reg.Ping(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("ping was not bounded by OpTimeout: %v", elapsed)
	}
}
