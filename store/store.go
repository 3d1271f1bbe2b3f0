package store

import (
	"context"
	"database/sql"
	"math"
	"strings"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"pkt.systems/pslog"
)

// Open connects to a SQLite database through bun.
func Open(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateSchema ensures both identity tables exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{(*PlatformUser)(nil), (*AppUser)(nil)}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create identity table")
		}
	}
	return nil
}

// Store is an identity store backed by one bun table.
type Store struct {
	db       bun.IDB
	source   auth.Source
	newModel func() accountModel
	logger   auth.Logger
}

// NewPrimaryStore reads platform accounts from the users table.
func NewPrimaryStore(db bun.IDB) *Store {
	return &Store{
		db:       db,
		source:   auth.SourcePrimary,
		newModel: func() accountModel { return &PlatformUser{} },
		logger:   pslog.NoopLogger(),
	}
}

// NewCustomStore reads application accounts from the app_users table.
func NewCustomStore(db bun.IDB) *Store {
	return &Store{
		db:       db,
		source:   auth.SourceCustom,
		newModel: func() accountModel { return &AppUser{} },
		logger:   pslog.NoopLogger(),
	}
}

func (s *Store) WithLogger(l auth.Logger) *Store {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Store) Source() auth.Source {
	return s.source
}

// FindByID implements auth.IdentityStore. Blocked accounts are reported
// as not found.
func (s *Store) FindByID(ctx context.Context, id uint64) (auth.Identity, error) {
	if id == 0 || id > math.MaxInt64 {
		return nil, auth.ErrIdentityNotFound
	}

	model := s.newModel()
	err := s.db.NewSelect().Model(model).Where("id = ?", int64(id)).Limit(1).Scan(ctx)
	if err != nil {
		return nil, s.mapError(err, "find by id")
	}

	acct := model.account()
	if acct.Blocked {
		s.logger.Debug("blocked account lookup", "source", string(s.source), "id", acct.ID)
		return nil, auth.ErrIdentityNotFound
	}
	return accountIdentity{acct: acct}, nil
}

// VerifyCredentials implements auth.CredentialStore. identifier matches
// either the email (case insensitive) or the username.
func (s *Store) VerifyCredentials(ctx context.Context, identifier, password string) (uint64, auth.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, nil, auth.ErrIdentityNotFound
	}

	model := s.newModel()
	err := s.db.NewSelect().
		Model(model).
		Where("lower(email) = lower(?) OR username = ?", identifier, identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return 0, nil, s.mapError(err, "find by identifier")
	}

	acct := model.account()
	if acct.Blocked {
		return 0, nil, auth.ErrIdentityNotFound
	}

	if !ComparePasswordAndHash(password, acct.PasswordHash) {
		return 0, nil, auth.ErrInvalidCredentials
	}
	return uint64(acct.ID), accountIdentity{acct: acct}, nil
}

// Create inserts a new account, hashing password when given.
func (s *Store) Create(ctx context.Context, acct Account, password string) (*Account, error) {
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to hash password").
				WithCode(errors.CodeBadRequest)
		}
		acct.PasswordHash = hash
	}

	model := s.newModel()
	*model.account() = acct
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create account").
			WithCode(errors.CodeInternal).
			WithMetadata(map[string]any{"source": string(s.source)})
	}
	return model.account(), nil
}

func (s *Store) mapError(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrIdentityNotFound
	}
	s.logger.Error("identity store query failed", "source", string(s.source), "op", op, "error", err)
	return errors.Wrap(err, errors.CategoryInternal, "identity store query failed").
		WithCode(errors.CodeInternal).
		WithMetadata(map[string]any{"source": string(s.source), "op": op})
}
