package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"telemt-admin/internal/repository"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Driver string
	Path   string
	URL    string
}

// Store bundles the repositories over one shared connection pool.
type Store struct {
	db *DB
	repository.RegistrationRepository
	repository.InviteTokenRepository
}

func NewStore(db *DB) *Store {
	return &Store{
		db:                     db,
		RegistrationRepository: NewRegistrationRepository(db),
		InviteTokenRepository:  NewInviteTokenRepository(db),
	}
}

// Open connects, configures the pool for the dialect and applies migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect, ok := NewDialect(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(dialect.DriverName(), dialect.DSN(DialectConfig{Path: cfg.Path, URL: cfg.URL}))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}
	if err := dialect.ConfigureConnection(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("configure %s: %w", dialect.Name(), err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name(), err)
	}

	db := &DB{DB: sqlDB, Dialect: dialect}
	if err := NewMigrator(db).Up(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
