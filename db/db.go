package db

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"neurallog/logging"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUsernameTaken = errors.New("username already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	email TEXT,
	is_admin INTEGER DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS activities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	activity_name TEXT NOT NULL,
	description TEXT,
	duration INTEGER,
	progress_score INTEGER,
	notes TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (id)
);

CREATE TABLE IF NOT EXISTS milestones (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	milestone_day INTEGER NOT NULL,
	insights TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (id)
);

CREATE INDEX IF NOT EXISTS idx_activities_user_date ON activities(user_id, date);
CREATE INDEX IF NOT EXISTS idx_milestones_user ON milestones(user_id);
`

// Store is the SQLite-backed persistence layer for users, activities and
// milestones.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path (":memory:" works too) and
// bootstraps the schema.
func Open(path string) (*Store, error) {
	s, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if _, err := s.Bootstrap(context.Background()); err != nil {
		s.Close()
		return nil, err
	}
	logging.DB().WithField("path", path).Debug("store ready")
	return s, nil
}

// Connect opens the database without touching the schema.
func Connect(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps ":memory:" databases intact.
	conn.SetMaxOpenConns(1)
	return New(conn), nil
}

// Bootstrap creates missing tables and indexes, then upgrades databases
// written before the admin flag existed.
func (s *Store) Bootstrap(ctx context.Context) (MigrationReport, error) {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return MigrationReport{}, fmt.Errorf("create tables: %w", err)
	}
	return s.Migrate(ctx)
}

// New wraps an existing connection without touching the schema.
func New(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// MigrationReport describes what Migrate changed.
type MigrationReport struct {
	AddedAdminColumn bool
	PromotedUserID   int64
}

// Migrate adds the is_admin column to a users table that predates it and
// makes the oldest account an administrator. It is a no-op on current
// databases.
func (s *Store) Migrate(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport

	var columns []struct {
		CID        int     `db:"cid"`
		Name       string  `db:"name"`
		Type       string  `db:"type"`
		NotNull    bool    `db:"notnull"`
		Default    *string `db:"dflt_value"`
		PrimaryKey int     `db:"pk"`
	}
	if err := s.db.SelectContext(ctx, &columns, "PRAGMA table_info(users)"); err != nil {
		return report, fmt.Errorf("inspect users table: %w", err)
	}
	for _, c := range columns {
		if c.Name == "is_admin" {
			return report, nil
		}
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "ALTER TABLE users ADD COLUMN is_admin INTEGER DEFAULT 0"); err != nil {
			return fmt.Errorf("add is_admin column: %w", err)
		}
		report.AddedAdminColumn = true

		query, args, err := sq.Select("id").From("users").OrderBy("id").Limit(1).ToSql()
		if err != nil {
			return err
		}
		var firstID int64
		if err := tx.GetContext(ctx, &firstID, query, args...); err != nil {
			if isNoRows(err) {
				return nil
			}
			return err
		}
		query, args, err = sq.Update("users").Set("is_admin", 1).Where(sq.Eq{"id": firstID}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("promote user %d: %w", firstID, err)
		}
		report.PromotedUserID = firstID
		return nil
	})
	if err != nil {
		return MigrationReport{}, err
	}

	logging.DB().WithFields(map[string]any{
		"promoted_user_id": report.PromotedUserID,
	}).Info("added is_admin column to users")
	return report, nil
}

// withTx runs fn inside a transaction, rolling back when fn fails or panics.
func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
