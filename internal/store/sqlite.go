// Package store caches connected-account details in SQLite so repeated
// lookups for the same tool call do not hit the platform API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/toolchat/internal/model"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("not found")

// SQLiteStore is the account cache backed by a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// any pending schema migrations. ":memory:" gives a private database that
// disappears on Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// UpsertAccount inserts or replaces an account. Zero timestamps are set to
// now.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, a model.Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO connected_accounts (
			id, name, external_id, app_slug, app_name, app_icon_url,
			healthy, created_at, updated_at
		) VALUES (
			:id, :name, :external_id, :app_slug, :app_name, :app_icon_url,
			:healthy, :created_at, :updated_at
		)`, a)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", a.ID, err)
	}
	return nil
}

// GetAccount returns a cached account or ErrNotFound.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := s.db.GetContext(ctx, &a, "SELECT * FROM connected_accounts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return &a, nil
}

// ListAccounts returns the cached accounts of one external user, newest
// first. An empty appSlug matches every app.
func (s *SQLiteStore) ListAccounts(ctx context.Context, externalID, appSlug string) ([]model.Account, error) {
	query := "SELECT * FROM connected_accounts WHERE external_id = ?"
	args := []any{externalID}
	if appSlug != "" {
		query += " AND app_slug = ?"
		args = append(args, appSlug)
	}
	query += " ORDER BY created_at DESC, id"

	var accounts []model.Account
	if err := s.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, fmt.Errorf("listing accounts for %s: %w", externalID, err)
	}
	return accounts, nil
}

// DeleteAccount removes a cached account. Deleting a missing account is
// not an error.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM connected_accounts WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	return nil
}

// ReplaceAccounts makes the cached accounts of externalID exactly accounts.
func (s *SQLiteStore) ReplaceAccounts(ctx context.Context, externalID string, accounts []model.Account) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM connected_accounts WHERE external_id = ?", externalID); err != nil {
		return fmt.Errorf("clearing accounts for %s: %w", externalID, err)
	}

	now := time.Now().UTC()
	for _, a := range accounts {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT OR REPLACE INTO connected_accounts (
				id, name, external_id, app_slug, app_name, app_icon_url,
				healthy, created_at, updated_at
			) VALUES (
				:id, :name, :external_id, :app_slug, :app_name, :app_icon_url,
				:healthy, :created_at, :updated_at
			)`, a)
		if err != nil {
			return fmt.Errorf("inserting account %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}
