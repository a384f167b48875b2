package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/MrEthical07/goGuard/identity"
)

// Directory is the identity view the authorizer needs.
// *identity.CachedDirectory satisfies it.
type Directory interface {
	UserPermissions(ctx context.Context, id string) ([]string, bool, error)
	UserRoles(ctx context.Context, id string) ([]identity.Role, error)
}

// Authorizer evaluates functional and data permissions. It is safe for
// concurrent use.
type Authorizer struct {
	dir    Directory
	policy rego.PreparedEvalQuery
	logger *slog.Logger
}

// Option configures an Authorizer.
type Option func(*options)

type options struct {
	policy string
	logger *slog.Logger
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(module string) Option {
	return func(o *options) { o.policy = module }
}

// WithLogger sets the logger used for decisions at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New compiles the policy and returns an authorizer over dir.
func New(ctx context.Context, dir Directory, opts ...Option) (*Authorizer, error) {
	if dir == nil {
		return nil, errors.New("access: nil directory")
	}
	o := options{policy: DefaultPolicy, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	pq, err := rego.New(
		rego.Query(query),
		rego.Module("goguard_access.rego", o.policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("access: compile policy: %w", err)
	}
	return &Authorizer{dir: dir, policy: pq, logger: o.logger}, nil
}

// HasPermission reports whether user holds code. Unknown users hold nothing.
func (a *Authorizer) HasPermission(ctx context.Context, userID, code string) (bool, error) {
	if userID == "" || code == "" {
		return false, nil
	}
	perms, ok, err := a.dir.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && slices.Contains(perms, code), nil
}

type subject struct {
	ID          string   `json:"id"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
	Levels      []int    `json:"levels"`
}

// CanAccess reports whether actor may act on target's data.
func (a *Authorizer) CanAccess(ctx context.Context, actorID, targetID string) (bool, error) {
	if actorID == "" || targetID == "" {
		return false, nil
	}

	actor, err := a.subject(ctx, actorID, true)
	if err != nil {
		return false, err
	}
	target := actor
	if actorID != targetID {
		if target, err = a.subject(ctx, targetID, false); err != nil {
			return false, err
		}
	}

	rs, err := a.policy.Eval(ctx, rego.EvalInput(map[string]any{
		"actor":  actor,
		"target": target,
	}))
	if err != nil {
		return false, fmt.Errorf("access: evaluate policy: %w", err)
	}
	allowed := rs.Allowed()
	a.logger.DebugContext(ctx, "data access decision",
		"actor", actorID, "target", targetID, "allowed", allowed)
	return allowed, nil
}

func (a *Authorizer) subject(ctx context.Context, id string, withPerms bool) (subject, error) {
	s := subject{ID: id, Permissions: []string{}, Roles: []string{}, Levels: []int{}}
	if withPerms {
		perms, _, err := a.dir.UserPermissions(ctx, id)
		if err != nil {
			return s, err
		}
		if perms != nil {
			s.Permissions = perms
		}
	}
	roles, err := a.dir.UserRoles(ctx, id)
	if err != nil {
		return s, err
	}
	for _, r := range roles {
		level := r.Level
		if level == 0 {
			level = identity.LevelOf(r.Code)
		}
		s.Roles = append(s.Roles, r.Code)
		s.Levels = append(s.Levels, level)
	}
	return s, nil
}
