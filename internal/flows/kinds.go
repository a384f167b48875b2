package flows

// FailureKind classifies flow failures for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureMalformed
	FailureExpired
	FailureRevoked
	FailureSuperseded
	FailureSessionLimit
	FailureLockContention
	FailureStoreUnavailable
	FailureInvalidCredentials
	FailureRateLimited
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureMalformed:
		return "malformed_token"
	case FailureExpired:
		return "token_expired"
	case FailureRevoked:
		return "token_revoked"
	case FailureSuperseded:
		return "token_superseded"
	case FailureSessionLimit:
		return "session_limit_reached"
	case FailureLockContention:
		return "lock_contention"
	case FailureStoreUnavailable:
		return "store_unavailable"
	case FailureInvalidCredentials:
		return "invalid_credentials"
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}
