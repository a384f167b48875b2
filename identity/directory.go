package identity

import (
	"context"
	"errors"
	"log/slog"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/cache"
)

const (
	usersCache       = "users"
	rolesCache       = "roles"
	permissionsCache = "user_perms"
)

// CachedDirectory is a read-through Directory over three keyed caches.
type CachedDirectory struct {
	origin Directory
	users  *cache.Cache[User]
	roles  *cache.Cache[Role]
	perms  *cache.Cache[[]string]
	logger *slog.Logger
}

var _ Directory = (*CachedDirectory)(nil)

// NewCachedDirectory builds the caches in the Engine's namespace.
func NewCachedDirectory(engine *goGuard.Engine, origin Directory) *CachedDirectory {
	return &CachedDirectory{
		origin: origin,
		users:  goGuard.NewCache[User](engine, usersCache, origin.User),
		roles:  goGuard.NewCache[Role](engine, rolesCache, origin.Role),
		perms:  goGuard.NewCache[[]string](engine, permissionsCache, origin.UserPermissions),
		logger: engine.Logger(),
	}
}

func (d *CachedDirectory) User(ctx context.Context, id string) (User, bool, error) {
	return d.users.Get(ctx, id)
}

func (d *CachedDirectory) Role(ctx context.Context, code string) (Role, bool, error) {
	return d.roles.Get(ctx, code)
}

func (d *CachedDirectory) UserPermissions(ctx context.Context, id string) ([]string, bool, error) {
	return d.perms.Get(ctx, id)
}

// UserRoles resolves the roles of user id. Unknown users and dangling role
// codes yield no roles.
func (d *CachedDirectory) UserRoles(ctx context.Context, id string) ([]Role, error) {
	u, ok, err := d.User(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	roles := make([]Role, 0, len(u.Roles))
	for _, code := range u.Roles {
		r, ok, err := d.Role(ctx, code)
		if err != nil {
			return nil, err
		}
		if ok {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

// InvalidateUser drops the cached account and permission set of id.
func (d *CachedDirectory) InvalidateUser(ctx context.Context, id string) error {
	return errors.Join(
		d.users.Invalidate(ctx, id),
		d.perms.Invalidate(ctx, id),
	)
}

// InvalidateRole drops the cached role and every cached permission set,
// since any user may hold the role.
func (d *CachedDirectory) InvalidateRole(ctx context.Context, code string) error {
	if err := d.roles.Invalidate(ctx, code); err != nil {
		return err
	}
	n, err := d.perms.Clear(ctx)
	if err != nil {
		return err
	}
	d.logger.DebugContext(ctx, "role invalidated", "role", code, "permission_sets", n)
	return nil
}

// WarmUp loads the accounts and permission sets of ids into the caches. It
// continues past per-user failures and returns how many users it loaded.
func (d *CachedDirectory) WarmUp(ctx context.Context, ids []string) (int, error) {
	var (
		loaded int
		errs   []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		u, ok, err := d.User(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if _, _, err := d.UserPermissions(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, code := range u.Roles {
			if _, _, err := d.Role(ctx, code); err != nil {
				errs = append(errs, err)
			}
		}
		loaded++
	}
	d.logger.InfoContext(ctx, "identity cache warmed", "requested", len(ids), "loaded", loaded, "errors", len(errs))
	return loaded, errors.Join(errs...)
}
