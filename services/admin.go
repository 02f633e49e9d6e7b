package services

import (
	"context"
	"errors"

	"neurallog/apperr"
	"neurallog/auth"
	"neurallog/db"
	"neurallog/models"
)

type AdminStore interface {
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
	DeleteUser(ctx context.Context, id int64) error
	ToggleAdmin(ctx context.Context, id int64) (bool, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	ActivitiesByUser(ctx context.Context, userID int64, order db.Order) ([]models.Activity, error)
	SystemStats(ctx context.Context) (models.SystemStats, error)
}

// Admin holds the cross-user operations. Callers must already have checked
// that the acting identity is an administrator.
type Admin struct {
	store AdminStore
}

func NewAdmin(store AdminStore) *Admin {
	return &Admin{store: store}
}

func notFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(MsgUserNotFound)
	}
	return err
}

func (s *Admin) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	return s.store.ListUsers(ctx)
}

// DeleteUser removes target and everything it owns. Admins cannot delete
// themselves.
func (s *Admin) DeleteUser(ctx context.Context, acting auth.Identity, target int64) error {
	if target == acting.UserID {
		return apperr.Forbidden(MsgCannotDeleteSelf)
	}
	return notFound(s.store.DeleteUser(ctx, target))
}

// ToggleAdmin flips target's admin flag and returns the new value. Admins
// cannot change their own flag.
func (s *Admin) ToggleAdmin(ctx context.Context, acting auth.Identity, target int64) (bool, error) {
	if target == acting.UserID {
		return false, apperr.Forbidden(MsgCannotModifyOwnAdmin)
	}
	next, err := s.store.ToggleAdmin(ctx, target)
	if err != nil {
		return false, notFound(err)
	}
	return next, nil
}

// UserActivities lists any user's activities, newest date first.
func (s *Admin) UserActivities(ctx context.Context, target int64) ([]models.Activity, error) {
	if _, err := s.store.UserByID(ctx, target); err != nil {
		return nil, notFound(err)
	}
	return s.store.ActivitiesByUser(ctx, target, db.NewestFirst)
}

func (s *Admin) SystemStats(ctx context.Context) (models.SystemStats, error) {
	return s.store.SystemStats(ctx)
}
