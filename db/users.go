package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"neurallog/models"
)

var userColumns = []string{
	"id",
	"username",
	"password_hash",
	"COALESCE(email, '') AS email",
	"COALESCE(is_admin, 0) AS is_admin",
	"created_at",
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (s *Store) getUser(ctx context.Context, where sq.Eq) (models.User, error) {
	var u models.User
	query, args, err := sq.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return u, err
	}
	if err := s.db.GetContext(ctx, &u, query, args...); err != nil {
		if isNoRows(err) {
			return u, ErrNotFound
		}
		return u, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserByUsername looks a user up by exact username.
func (s *Store) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, sq.Eq{"username": username})
}

func (s *Store) UserByID(ctx context.Context, id int64) (models.User, error) {
	return s.getUser(ctx, sq.Eq{"id": id})
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CreateUser inserts a user. The first user ever stored is made an admin.
// The existence check, the count and the insert share one transaction.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, email string) (models.User, error) {
	var created models.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM users WHERE username = ?", username); err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if exists > 0 {
			return ErrUsernameTaken
		}

		var count int
		if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		isAdmin := count == 0

		query, args, err := sq.Insert("users").
			Columns("username", "password_hash", "email", "is_admin").
			Values(username, passwordHash, email, isAdmin).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		created = models.User{ID: id, Username: username, PasswordHash: passwordHash, Email: email, IsAdmin: isAdmin}
		return nil
	})
	return created, err
}

// ListUsers returns every user with their activity count, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	query, args, err := sq.Select(
		"u.id AS id",
		"u.username AS username",
		"COALESCE(u.email, '') AS email",
		"COALESCE(u.is_admin, 0) AS is_admin",
		"u.created_at AS created_at",
		"(SELECT COUNT(*) FROM activities a WHERE a.user_id = u.id) AS activity_count",
	).From("users u").OrderBy("u.created_at DESC", "u.id DESC").ToSql()
	if err != nil {
		return nil, err
	}
	users := []models.UserSummary{}
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ToggleAdmin flips the admin flag of user id and returns the new value.
func (s *Store) ToggleAdmin(ctx context.Context, id int64) (bool, error) {
	var next bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current bool
		if err := tx.GetContext(ctx, &current, "SELECT COALESCE(is_admin, 0) FROM users WHERE id = ?", id); err != nil {
			if isNoRows(err) {
				return ErrNotFound
			}
			return fmt.Errorf("get admin flag: %w", err)
		}
		next = !current
		query, args, err := sq.Update("users").Set("is_admin", next).Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update admin flag: %w", err)
		}
		return nil
	})
	return next, err
}

// DeleteUser removes a user's activities, milestones and the user row, in
// that order, as one transaction. It returns ErrNotFound, and changes
// nothing, when the user does not exist.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"activities", "milestones"} {
			query, args, err := sq.Delete(table).Where(sq.Eq{"user_id": id}).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete %s of user %d: %w", table, id, err)
			}
		}

		query, args, err := sq.Delete("users").Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SystemStats aggregates counts across all users. ActiveUsers holds the ten
// users with the most activities, including users with none.
func (s *Store) SystemStats(ctx context.Context) (models.SystemStats, error) {
	var st models.SystemStats
	counts := []struct {
		dst   *int
		query string
	}{
		{&st.TotalUsers, "SELECT COUNT(*) FROM users"},
		{&st.TotalActivities, "SELECT COUNT(*) FROM activities"},
		{&st.TotalAdmins, "SELECT COUNT(*) FROM users WHERE is_admin = 1"},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return st, fmt.Errorf("system stats: %w", err)
		}
	}

	query, args, err := sq.Select(
		"u.id AS id",
		"u.username AS username",
		"COUNT(a.id) AS activity_count",
	).From("users u").
		LeftJoin("activities a ON a.user_id = u.id").
		GroupBy("u.id").
		OrderBy("activity_count DESC", "u.id").
		Limit(10).
		ToSql()
	if err != nil {
		return st, err
	}
	st.ActiveUsers = []models.ActiveUser{}
	if err := s.db.SelectContext(ctx, &st.ActiveUsers, query, args...); err != nil {
		return st, fmt.Errorf("most active users: %w", err)
	}
	return st, nil
}
