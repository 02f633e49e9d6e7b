package services

import (
	"context"
	"strings"

	"neurallog/apperr"
	"neurallog/auth"
	"neurallog/db"
	"neurallog/models"
)

type ActivityStore interface {
	InsertActivity(ctx context.Context, userID int64, a models.NewActivity) (int64, error)
	ActivitiesByUser(ctx context.Context, userID int64, order db.Order) ([]models.Activity, error)
	DeleteActivity(ctx context.Context, userID, id int64) (int64, error)
}

// Activities manages the log entries of the calling user.
type Activities struct {
	store ActivityStore
}

func NewActivities(store ActivityStore) *Activities {
	return &Activities{store: store}
}

// Create stores a new entry for owner. Date and name must be present;
// nothing else is validated.
func (s *Activities) Create(ctx context.Context, owner auth.Identity, in models.NewActivity) (int64, error) {
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.ActivityName) == "" {
		return 0, apperr.Validation(MsgDateAndNameRequired)
	}
	return s.store.InsertActivity(ctx, owner.UserID, in)
}

// List returns owner's entries, newest date first.
func (s *Activities) List(ctx context.Context, owner auth.Identity) ([]models.Activity, error) {
	return s.store.ActivitiesByUser(ctx, owner.UserID, db.NewestFirst)
}

// Delete removes entry id if owner owns it. An id that matches nothing is
// not an error.
func (s *Activities) Delete(ctx context.Context, owner auth.Identity, id int64) error {
	_, err := s.store.DeleteActivity(ctx, owner.UserID, id)
	return err
}
