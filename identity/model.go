package identity

import (
	"context"
	"errors"
)

// Well-known role codes and their levels. A higher level outranks a lower one.
const (
	RoleSuperAdmin = "ROLE_SUPER_ADMIN"
	RoleAdmin      = "ROLE_ADMIN"
	RoleManager    = "ROLE_MANAGER"
	RoleUser       = "ROLE_USER"

	LevelSuperAdmin = 100
	LevelAdmin      = 80
	LevelManager    = 60
	LevelUser       = 10
)

// UserStatus mirrors the origin's enabled flag.
type UserStatus int

const (
	StatusDisabled UserStatus = 0
	StatusEnabled  UserStatus = 1
)

var ErrOriginUnavailable = errors.New("identity origin unavailable")

// User is the cached projection of an account. It never carries credentials.
type User struct {
	ID         string     `cbor:"1,keyasint"`
	Identifier string     `cbor:"2,keyasint"`
	Username   string     `cbor:"3,keyasint"`
	Status     UserStatus `cbor:"4,keyasint"`
	Roles      []string   `cbor:"5,keyasint"`
}

// Enabled reports whether the account may sign in.
func (u User) Enabled() bool {
	return u.Status == StatusEnabled
}

// Role is a role with its level and permission codes.
type Role struct {
	Code        string   `cbor:"1,keyasint"`
	Name        string   `cbor:"2,keyasint"`
	Level       int      `cbor:"3,keyasint"`
	Permissions []string `cbor:"4,keyasint"`
}

// LevelOf returns the level of a well-known role code, or 0.
func LevelOf(code string) int {
	switch code {
	case RoleSuperAdmin:
		return LevelSuperAdmin
	case RoleAdmin:
		return LevelAdmin
	case RoleManager:
		return LevelManager
	case RoleUser:
		return LevelUser
	default:
		return 0
	}
}

// Directory is the origin of identity data. found=false means no such record.
type Directory interface {
	User(ctx context.Context, id string) (u User, found bool, err error)
	Role(ctx context.Context, code string) (r Role, found bool, err error)
	UserPermissions(ctx context.Context, id string) (codes []string, found bool, err error)
}
