package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGuard/lock"
)

var (
	// ErrSessionLimitReached is returned by Register when the principal is at
	// its session limit and eviction is disabled.
	ErrSessionLimitReached = errors.New("session limit reached")
	// ErrStoreUnavailable wraps Redis failures and timeouts.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSuperseded is returned by Register when the refresh record of the
	// replaced session no longer matches Registration.ExpectRefresh.
	ErrSuperseded = errors.New("session superseded")
)

// Registry tracks the live sessions of each principal.
type Registry struct {
	redis redis.UniversalClient
	locks *lock.Service
	deny  *Denylist
	cfg   Config
}

// NewRegistry returns a Registry. Revocations triggered by eviction,
// rotation and RevokeAll are written to deny.
func NewRegistry(client redis.UniversalClient, locks *lock.Service, deny *Denylist, cfg Config) *Registry {
	return &Registry{
		redis: client,
		locks: locks,
		deny:  deny,
		cfg:   cfg.withDefaults(),
	}
}

func (r *Registry) listKey(principal string) string {
	return r.cfg.Prefix + ":sess:" + principal
}

func (r *Registry) refreshKey(principal string) string {
	return r.cfg.Prefix + ":rt:" + principal
}

func (r *Registry) lockName(principal string) string {
	return "session:" + principal
}

// Register appends reg.Entry to the principal's list. While the list is at
// reg.MaxSessions it evicts the oldest entry, revoking its access token, or
// fails with ErrSessionLimitReached when reg.Evict is false. The list, the
// refresh record and every revocation are written in one transaction.
func (r *Registry) Register(ctx context.Context, principal string, reg Registration) ([]Entry, error) {
	release, err := r.lock(ctx, principal)
	if err != nil {
		return nil, err
	}
	defer release()

	if reg.Replaces != "" && reg.ExpectRefresh != "" {
		current, ok, err := r.LoadRefresh(ctx, principal, reg.Replaces)
		if err != nil {
			return nil, err
		}
		if !ok || current != reg.ExpectRefresh {
			return nil, ErrSuperseded
		}
	}

	now := r.cfg.Now()
	entries, err := r.read(ctx, principal)
	if err != nil {
		return nil, err
	}

	live := entries[:0]
	var retired []Entry
	for _, e := range entries {
		switch {
		case e.Expired(now):
		case reg.Replaces != "" && e.SessionID == reg.Replaces:
			retired = append(retired, e)
		default:
			live = append(live, e)
		}
	}

	var evicted []Entry
	if reg.MaxSessions > 0 {
		for len(live) >= reg.MaxSessions {
			if !reg.Evict {
				return nil, ErrSessionLimitReached
			}
			evicted = append(evicted, live[0])
			live = live[1:]
		}
	}
	live = append(live, reg.Entry)

	encoded := make([]any, 0, len(live))
	for _, e := range live {
		b, err := encodeEntry(e)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, b)
	}

	var refreshBlob []byte
	if reg.RefreshToken != "" {
		refreshBlob, err = encodeRefresh(refreshRecord{Token: reg.RefreshToken, ExpiresAt: reg.RefreshExpiresAt})
		if err != nil {
			return nil, err
		}
	}

	stale, err := r.staleRefreshFields(ctx, principal, now)
	if err != nil {
		return nil, err
	}
	if reg.Replaces != "" {
		stale = append(stale, reg.Replaces)
	}
	for _, e := range evicted {
		stale = append(stale, e.SessionID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		listKey := r.listKey(principal)
		pipe.Del(ctx, listKey)
		pipe.RPush(ctx, listKey, encoded...)
		pipe.PExpire(ctx, listKey, r.cfg.SessionTTL)

		for _, e := range retired {
			r.deny.revokePiped(ctx, pipe, e.AccessToken, e.ExpiresAt)
		}
		for _, e := range evicted {
			r.deny.revokePiped(ctx, pipe, e.AccessToken, e.ExpiresAt)
		}

		rtKey := r.refreshKey(principal)
		if len(stale) > 0 {
			pipe.HDel(ctx, rtKey, stale...)
		}
		if refreshBlob != nil {
			pipe.HSet(ctx, rtKey, reg.Entry.SessionID, refreshBlob)
			pipe.PExpire(ctx, rtKey, r.cfg.RefreshTTL)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return evicted, nil
}

// Lookup returns the live entry for sessionID.
func (r *Registry) Lookup(ctx context.Context, principal, sessionID string) (Entry, bool, error) {
	entries, err := r.read(ctx, principal)
	if err != nil {
		return Entry{}, false, err
	}
	now := r.cfg.Now()
	for _, e := range entries {
		if e.SessionID == sessionID && !e.Expired(now) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Sessions returns the principal's live entries, oldest first.
func (r *Registry) Sessions(ctx context.Context, principal string) ([]Entry, error) {
	entries, err := r.read(ctx, principal)
	if err != nil {
		return nil, err
	}
	now := r.cfg.Now()
	live := entries[:0]
	for _, e := range entries {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	return live, nil
}

// Remove drops one session: its entry, its refresh record, and its access
// token via the revocation list.
func (r *Registry) Remove(ctx context.Context, principal, sessionID string) (Entry, bool, error) {
	release, err := r.lock(ctx, principal)
	if err != nil {
		return Entry{}, false, err
	}
	defer release()

	entries, err := r.read(ctx, principal)
	if err != nil {
		return Entry{}, false, err
	}

	now := r.cfg.Now()
	var (
		removed Entry
		found   bool
		keep    []any
		latest  int64
	)
	for _, e := range entries {
		if e.SessionID == sessionID {
			removed, found = e, true
			continue
		}
		if e.Expired(now) {
			continue
		}
		b, err := encodeEntry(e)
		if err != nil {
			return Entry{}, false, err
		}
		keep = append(keep, b)
		latest = max(latest, e.ExpiresAt)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		listKey := r.listKey(principal)
		pipe.Del(ctx, listKey)
		if len(keep) > 0 {
			pipe.RPush(ctx, listKey, keep...)
			pipe.PExpireAt(ctx, listKey, time.UnixMilli(latest))
		}
		pipe.HDel(ctx, r.refreshKey(principal), sessionID)
		if found {
			r.deny.revokePiped(ctx, pipe, removed.AccessToken, removed.ExpiresAt)
		}
		return nil
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return removed, found, nil
}

// RevokeAll revokes every live access token of the principal and deletes its
// list and refresh records. It returns the number of revoked sessions.
func (r *Registry) RevokeAll(ctx context.Context, principal string) (int, error) {
	release, err := r.lock(ctx, principal)
	if err != nil {
		return 0, err
	}
	defer release()

	entries, err := r.read(ctx, principal)
	if err != nil {
		return 0, err
	}

	now := r.cfg.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	revoked := 0
	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			if e.Expired(now) {
				continue
			}
			r.deny.revokePiped(ctx, pipe, e.AccessToken, e.ExpiresAt)
			revoked++
		}
		pipe.Del(ctx, r.listKey(principal), r.refreshKey(principal))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return revoked, nil
}

// LoadRefresh returns the refresh token on record for the session.
func (r *Registry) LoadRefresh(ctx context.Context, principal, sessionID string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	raw, err := r.redis.HGet(ctx, r.refreshKey(principal), sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	rec, err := decodeRefresh(raw)
	if err != nil {
		return "", false, nil
	}
	return rec.Token, true, nil
}

// EstimateActivePrincipals counts principals with a session list using SCAN.
func (r *Registry) EstimateActivePrincipals(ctx context.Context) (int, error) {
	pattern := r.cfg.Prefix + ":sess:*"
	var (
		cursor uint64
		count  int
	)
	for {
		scanCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
		keys, next, err := r.redis.Scan(scanCtx, cursor, pattern, 1000).Result()
		cancel()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Ping measures a store round trip.
func (r *Registry) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func (r *Registry) lock(ctx context.Context, principal string) (func(), error) {
	release, err := r.locks.Acquire(ctx, r.lockName(principal), r.cfg.LockTTL, r.cfg.LockWait)
	if errors.Is(err, lock.ErrUnavailable) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return release, err
}

func (r *Registry) read(ctx context.Context, principal string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	raw, err := r.redis.LRange(ctx, r.listKey(principal), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, s := range raw {
		e, err := decodeEntry([]byte(s))
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Registry) staleRefreshFields(ctx context.Context, principal string, now time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	fields, err := r.redis.HGetAll(ctx, r.refreshKey(principal)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var stale []string
	for sid, raw := range fields {
		rec, err := decodeRefresh([]byte(raw))
		if err != nil || rec.ExpiresAt <= now.UnixMilli() {
			stale = append(stale, sid)
		}
	}
	return stale, nil
}
