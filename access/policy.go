package access

// DefaultPolicy grants data access to oneself, to holders of PermUserAll,
// and to holders of PermUserManager who strictly outrank the target. A
// target without roles can only be reached through the first two rules.
const DefaultPolicy = `package goguard.access

default allow := false

allow if input.actor.id == input.target.id

allow if "sys:user:all" in input.actor.permissions

allow if "ROLE_SUPER_ADMIN" in input.actor.roles

allow if {
	"sys:user:manager" in input.actor.permissions
	count(input.actor.levels) > 0
	count(input.target.levels) > 0
	max(input.actor.levels) > max(input.target.levels)
}
`

const (
	PermUserAll     = "sys:user:all"
	PermUserManager = "sys:user:manager"

	query = "data.goguard.access.allow"
)
