package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWT algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrExpired is returned by Parse for a well-formed token past expiry plus leeway.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned by Parse for every other rejection.
	ErrMalformed = errors.New("token malformed")
)

// Config configures a pair of managers.
type Config struct {
	SigningMethod SigningMethod
	// Secret is the master key material both signing keys are derived from.
	Secret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration

	Issuer   string
	Audience string
	KeyID    string

	Now func() time.Time
}

// Claims are the signed claims of both token kinds. Subject holds the principal id.
type Claims struct {
	Kind Kind   `json:"typ"`
	SID  string `json:"sid"`
	jwt.RegisteredClaims
}

// Principal returns the subject claim.
func (c *Claims) Principal() string {
	return c.Subject
}

// Manager issues and parses tokens of one kind.
type Manager struct {
	kind      Kind
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	ttl       time.Duration
	leeway    time.Duration
	issuer    string
	audience  string
	keyID     string
	now       func() time.Time
}

// NewPair validates cfg and returns the access and refresh managers.
func NewPair(cfg Config) (access *Manager, refresh *Manager, err error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	access, err = newManager(cfg, KindAccess, cfg.AccessTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, err = newManager(cfg, KindRefresh, cfg.RefreshTTL)
	if err != nil {
		return nil, nil, err
	}
	return access, refresh, nil
}

func newManager(cfg Config, kind Kind, ttl time.Duration) (*Manager, error) {
	sign, verify, err := signingKeys(cfg.SigningMethod, cfg.Secret, kind)
	if err != nil {
		return nil, err
	}
	method := jwt.SigningMethod(jwt.SigningMethodHS256)
	if cfg.SigningMethod == MethodEd25519 {
		method = jwt.SigningMethodEdDSA
	}
	return &Manager{
		kind:      kind,
		method:    method,
		signKey:   sign,
		verifyKey: verify,
		ttl:       ttl,
		leeway:    cfg.Leeway,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		keyID:     cfg.KeyID,
		now:       cfg.Now,
	}, nil
}

// Kind returns the token kind this manager handles.
func (m *Manager) Kind() Kind { return m.kind }

// TTL returns the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for principal and sessionID.
func (m *Manager) Issue(principal, sessionID string) (string, *Claims, error) {
	if principal == "" || sessionID == "" {
		return "", nil, errors.New("principal and session id required")
	}
	now := m.now()
	claims := &Claims{
		Kind: m.kind,
		SID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    m.issuer,
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.keyID != "" {
		token.Header["kid"] = m.keyID
	}
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies tokenStr and returns its claims. Errors wrap ErrExpired or ErrMalformed.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.leeway > 0 {
		options = append(options, jwt.WithLeeway(m.leeway))
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		options = append(options, jwt.WithAudience(m.audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if m.keyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != m.keyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != m.kind {
		return nil, fmt.Errorf("%w: token kind %q", ErrMalformed, claims.Kind)
	}
	if claims.Subject == "" || claims.SID == "" {
		return nil, fmt.Errorf("%w: missing subject or session", ErrMalformed)
	}
	return claims, nil
}

// ExpiresAt returns the expiry of claims, or the zero time.
func ExpiresAt(c *Claims) time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
