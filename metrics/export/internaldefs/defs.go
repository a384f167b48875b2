package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricLoginSuccess, Name: "goguard_login_success_total", Help: "Successful logins."},
	{ID: goGuard.MetricLoginFailure, Name: "goguard_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: goGuard.MetricLoginRateLimited, Name: "goguard_login_rate_limited_total", Help: "Logins rejected by the failed-login throttle."},
	{ID: goGuard.MetricSessionCreated, Name: "goguard_session_created_total", Help: "Sessions registered by Issue, Login and Refresh."},
	{ID: goGuard.MetricSessionEvicted, Name: "goguard_session_evicted_total", Help: "Oldest sessions evicted to stay within the session limit."},
	{ID: goGuard.MetricSessionLimitReached, Name: "goguard_session_limit_reached_total", Help: "Issues rejected because the session limit was reached."},
	{ID: goGuard.MetricValidateSuccess, Name: "goguard_validate_success_total", Help: "Access tokens accepted."},
	{ID: goGuard.MetricValidateMalformed, Name: "goguard_validate_malformed_total", Help: "Tokens rejected as malformed or badly signed."},
	{ID: goGuard.MetricValidateExpired, Name: "goguard_validate_expired_total", Help: "Tokens rejected as expired."},
	{ID: goGuard.MetricValidateRevoked, Name: "goguard_validate_revoked_total", Help: "Tokens rejected as revoked."},
	{ID: goGuard.MetricValidateSuperseded, Name: "goguard_validate_superseded_total", Help: "Tokens rejected because their session is gone."},
	{ID: goGuard.MetricValidateStoreUnavailable, Name: "goguard_validate_store_unavailable_total", Help: "Validations failed closed on store errors."},
	{ID: goGuard.MetricRefreshSuccess, Name: "goguard_refresh_success_total", Help: "Successful token rotations."},
	{ID: goGuard.MetricRefreshFailure, Name: "goguard_refresh_failure_total", Help: "Failed token rotations."},
	{ID: goGuard.MetricRefreshContention, Name: "goguard_refresh_contention_total", Help: "Rotations rejected because another rotation held the lock."},
	{ID: goGuard.MetricLogout, Name: "goguard_logout_total", Help: "Single-session logouts."},
	{ID: goGuard.MetricRevokeAll, Name: "goguard_revoke_all_total", Help: "Revocations of every session of a principal."},
	{ID: goGuard.MetricCacheHit, Name: "goguard_cache_hit_total", Help: "Keyed cache hits."},
	{ID: goGuard.MetricCacheSentinelHit, Name: "goguard_cache_sentinel_hit_total", Help: "Keyed cache hits on the absent-value sentinel."},
	{ID: goGuard.MetricCacheMiss, Name: "goguard_cache_miss_total", Help: "Keyed cache misses."},
	{ID: goGuard.MetricCacheLoad, Name: "goguard_cache_load_total", Help: "Origin loads performed by keyed caches."},
	{ID: goGuard.MetricCacheDecodeError, Name: "goguard_cache_decode_error_total", Help: "Cached payloads that failed to decode."},
	{ID: goGuard.MetricCacheStoreError, Name: "goguard_cache_store_error_total", Help: "Keyed cache store errors served from the origin."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricValidateLatency, Name: "goguard_validate_latency_seconds", Help: "Validate latency."},
}

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = "goguard_audit_dropped_total"

// HistogramUpperBounds are the bucket bounds in seconds, matching the
// engine's bucketing. The final +Inf bucket is implicit.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// publish one gauge per bucket.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// BucketCount is the number of engine buckets, +Inf included.
const BucketCount = 8

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
