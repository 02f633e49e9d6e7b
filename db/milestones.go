package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"neurallog/models"
)

// InsertMilestone appends a snapshot row. Snapshots are never updated.
func (s *Store) InsertMilestone(ctx context.Context, userID int64, day int, insights []byte) (int64, error) {
	query, args, err := sq.Insert("milestones").
		Columns("user_id", "milestone_day", "insights").
		Values(userID, day, string(insights)).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert milestone: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) MilestonesByUser(ctx context.Context, userID int64) ([]models.Milestone, error) {
	query, args, err := sq.Select("id", "user_id", "milestone_day", "insights", "created_at").
		From("milestones").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	milestones := []models.Milestone{}
	if err := s.db.SelectContext(ctx, &milestones, query, args...); err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return milestones, nil
}

func (s *Store) CountMilestones(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM milestones WHERE user_id = ?", userID); err != nil {
		return 0, fmt.Errorf("count milestones: %w", err)
	}
	return n, nil
}
