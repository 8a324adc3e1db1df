package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vendorse/internal/config"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	postgres "vendorse/internal/repository/db"
)

const uniqueViolation = "23505"

// Repository runs queries either on the pool or, inside InTx, on a single
// transaction. Methods never open transactions themselves.
type Repository struct {
	db  *sqlx.DB
	q   sqlx.ExtContext
	tx  *sqlx.Tx
	cfg *config.PostgresConfig
	log *zap.Logger
}

func NewRepository(ctx context.Context, db *sqlx.DB, cfg *config.PostgresConfig, log *zap.Logger) (*Repository, error) {
	var err error

	if log == nil {
		log = zap.NewNop()
	}

	repo := &Repository{
		db:  db,
		cfg: cfg,
		log: log.Named("repository"),
	}

	if repo.cfg == nil {
		repo.cfg, err = config.NewPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not load postgres config: %w", err)
		}
	}

	if repo.db == nil {
		repo.db, err = postgres.NewPostgresDB(ctx, repo.cfg)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not open postgres db: %w", err)
		}
	}
	repo.q = repo.db

	if repo.cfg.AutoMigrateUp {
		err = repo.MigrateUp()
		if err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (repo *Repository) MigrateUp() error {
	repo.log.Info("migrating up", zap.String("source", migrationsSource(repo.cfg.MigrationsURL)))
	err := postgres.MigrateUp(repo.db.DB, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateUp: %w", err)
	}
	return nil
}

func (repo *Repository) MigrateDown() error {
	repo.log.Info("migrating down", zap.String("source", migrationsSource(repo.cfg.MigrationsURL)))
	err := postgres.MigrateDown(repo.db.DB, repo.cfg.MigrationsURL)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateDown: %w", err)
	}
	return nil
}

// InTx runs fn against a repository bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Nested calls reuse the
// outer transaction.
func (repo *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	if repo.tx != nil {
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository.Repository.InTx: could not begin transaction: %w", err)
	}

	txRepo := &Repository{db: repo.db, q: tx, tx: tx, cfg: repo.cfg, log: repo.log}

	err = fn(txRepo)
	if err != nil {
		return wrapRollbackErr(tx, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("repository.Repository.InTx: commit failed: %w", err)
	}
	return nil
}

func (repo *Repository) getContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, repo.q, dest, query, args...)
}

func (repo *Repository) selectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, repo.q, dest, query, args...)
}

func (repo *Repository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := repo.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (repo *Repository) Ping(ctx context.Context) error {
	return repo.db.PingContext(ctx)
}

func (repo *Repository) Close() error {
	var migErr error
	if repo.cfg.AutoMigrateDown {
		migErr = repo.MigrateDown()
	}

	err := repo.db.Close()
	return errors.Join(migErr, err)
}

//// Service

func wrapRollbackErr(tx *sqlx.Tx, err error) error {
	rollerr := tx.Rollback()
	if rollerr == nil {
		return err
	}
	return fmt.Errorf("failed to rollback transaction after previous error: %w, %w", rollerr, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// errNotFound keeps sql.ErrNoRows in the chain together with the missing id.
func errNotFound(op, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: no row found by id %s: %w", op, id, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func migrationsSource(url string) string {
	if url == "" {
		return "embedded"
	}
	return url
}

func toStrings[T ~string](t []T) []string {
	parts := make([]string, 0, len(t))
	for _, v := range t {
		parts = append(parts, string(v))
	}
	return parts
}

// conditions collects WHERE clauses written with the "$$" placeholder. Every
// clause takes exactly one argument; a clause may repeat "$$" to reuse it.
type conditions struct {
	clauses []string
	params  []interface{}
}

func (c *conditions) add(clause string, param interface{}) {
	c.clauses = append(c.clauses, clause)
	c.params = append(c.params, param)
}

// where renders the clauses with placeholders numbered from first.
func (c *conditions) where(first int) string {
	if len(c.clauses) == 0 {
		return ""
	}
	parts := make([]string, len(c.clauses))
	for i, clause := range c.clauses {
		parts[i] = strings.ReplaceAll(clause, "$$", "$"+strconv.Itoa(i+first))
	}
	return "WHERE " + strings.Join(parts, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func limitParam(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}
