// Package postgres is the PostgreSQL origin for identity data and login
// credentials, built on a caller-owned pgx pool.
//
// Expected tables (see [Schema]): users, roles, permissions, user_roles and
// role_permissions. Soft-deleted rows (deleted = true) are invisible.
package postgres
