package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/goGuard/identity"
)

// Schema creates the tables Store reads. Placeholders are replaced with the
// configured schema name by ApplySchema.
const Schema = `
CREATE SCHEMA IF NOT EXISTS {{schema}};

CREATE TABLE IF NOT EXISTS {{schema}}.users (
    id            BIGSERIAL PRIMARY KEY,
    identifier    TEXT NOT NULL UNIQUE,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    status        SMALLINT NOT NULL DEFAULT 1,
    deleted       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS {{schema}}.roles (
    id      BIGSERIAL PRIMARY KEY,
    code    TEXT NOT NULL UNIQUE,
    name    TEXT NOT NULL,
    level   INTEGER NOT NULL DEFAULT 0,
    deleted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS {{schema}}.permissions (
    id      BIGSERIAL PRIMARY KEY,
    code    TEXT NOT NULL UNIQUE,
    deleted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS {{schema}}.user_roles (
    user_id BIGINT NOT NULL REFERENCES {{schema}}.users(id),
    role_id BIGINT NOT NULL REFERENCES {{schema}}.roles(id),
    PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS {{schema}}.role_permissions (
    role_id       BIGINT NOT NULL REFERENCES {{schema}}.roles(id),
    permission_id BIGINT NOT NULL REFERENCES {{schema}}.permissions(id),
    PRIMARY KEY (role_id, permission_id)
);
`

// Store reads identity data from PostgreSQL. The pool is owned by the caller.
type Store struct {
	pool      *pgxpool.Pool
	schema    string
	opTimeout time.Duration
}

// Option configures the store.
type Option func(*Store) error

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema name (default "goguard").
func WithSchema(schema string) Option {
	return func(s *Store) error {
		schema = strings.TrimSpace(schema)
		if !identRe.MatchString(schema) {
			return fmt.Errorf("postgres: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// WithQueryTimeout bounds each query (default 2s).
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) error {
		if d <= 0 {
			return errors.New("postgres: query timeout must be > 0")
		}
		s.opTimeout = d
		return nil
	}
}

// New returns a Store over pool.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	s := &Store{
		pool:      pool,
		schema:    "goguard",
		opTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("postgres: nil pool")
	}
	return s, nil
}

// Open parses url, connects a pool and checks connectivity.
func Open(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ApplySchema creates the tables if they do not exist.
func (s *Store) ApplySchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, strings.ReplaceAll(Schema, "{{schema}}", s.schema))
	return err
}

func (s *Store) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func (s *Store) User(ctx context.Context, id string) (identity.User, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var u identity.User
	var status int16
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, identifier, username, status
		   FROM `+s.table("users")+`
		  WHERE id::text = $1 AND NOT deleted`, id,
	).Scan(&u.ID, &u.Identifier, &u.Username, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.User{}, false, nil
	}
	if err != nil {
		return identity.User{}, false, originErr(err)
	}
	u.Status = identity.UserStatus(status)

	rows, err := s.pool.Query(ctx,
		`SELECT r.code
		   FROM `+s.table("user_roles")+` ur
		   JOIN `+s.table("roles")+` r ON r.id = ur.role_id AND NOT r.deleted
		  WHERE ur.user_id::text = $1
		  ORDER BY r.level DESC, r.code`, id)
	if err != nil {
		return identity.User{}, false, originErr(err)
	}
	u.Roles, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return identity.User{}, false, originErr(err)
	}
	return u, true, nil
}

func (s *Store) Role(ctx context.Context, code string) (identity.Role, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var (
		r  identity.Role
		id int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, level
		   FROM `+s.table("roles")+`
		  WHERE code = $1 AND NOT deleted`, code,
	).Scan(&id, &r.Code, &r.Name, &r.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.Role{}, false, nil
	}
	if err != nil {
		return identity.Role{}, false, originErr(err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT p.code
		   FROM `+s.table("role_permissions")+` rp
		   JOIN `+s.table("permissions")+` p ON p.id = rp.permission_id AND NOT p.deleted
		  WHERE rp.role_id = $1
		  ORDER BY p.code`, id)
	if err != nil {
		return identity.Role{}, false, originErr(err)
	}
	r.Permissions, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return identity.Role{}, false, originErr(err)
	}
	return r, true, nil
}

func (s *Store) UserPermissions(ctx context.Context, id string) ([]string, bool, error) {
	if _, ok, err := s.User(ctx, id); err != nil || !ok {
		return nil, ok, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT p.code
		   FROM `+s.table("user_roles")+` ur
		   JOIN `+s.table("roles")+` r ON r.id = ur.role_id AND NOT r.deleted
		   JOIN `+s.table("role_permissions")+` rp ON rp.role_id = r.id
		   JOIN `+s.table("permissions")+` p ON p.id = rp.permission_id AND NOT p.deleted
		  WHERE ur.user_id::text = $1
		  ORDER BY p.code`, id)
	if err != nil {
		return nil, false, originErr(err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, false, originErr(err)
	}
	return codes, true, nil
}

// Credentials returns the principal id and password hash for an enabled
// account named username.
func (s *Store) Credentials(ctx context.Context, username string) (principalID, passwordHash string, found bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err = s.pool.QueryRow(ctx,
		`SELECT id::text, password_hash
		   FROM `+s.table("users")+`
		  WHERE username = $1 AND status = 1 AND NOT deleted`, username,
	).Scan(&principalID, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, originErr(err)
	}
	return principalID, passwordHash, true, nil
}

func originErr(err error) error {
	return fmt.Errorf("%w: %v", identity.ErrOriginUnavailable, err)
}

var _ identity.Directory = (*Store)(nil)
