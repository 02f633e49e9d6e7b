package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"neurallog/models"
)

// Order selects how activity lists are sorted by date.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

var activityColumns = []string{
	"id",
	"user_id",
	"date",
	"activity_name",
	"COALESCE(description, '') AS description",
	"COALESCE(duration, 0) AS duration",
	"COALESCE(progress_score, 0) AS progress_score",
	"COALESCE(notes, '') AS notes",
	"created_at",
}

// nonZeroAvg averages progress scores, ignoring zero ("unset") scores.
const nonZeroAvg = "COALESCE(AVG(CASE WHEN progress_score <> 0 THEN progress_score END), 0)"

func (s *Store) InsertActivity(ctx context.Context, userID int64, a models.NewActivity) (int64, error) {
	query, args, err := sq.Insert("activities").
		Columns("user_id", "date", "activity_name", "description", "duration", "progress_score", "notes").
		Values(userID, a.Date, a.ActivityName, a.Description, a.Duration, a.ProgressScore, a.Notes).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	return res.LastInsertId()
}

// ActivitiesByUser lists every activity owned by userID.
func (s *Store) ActivitiesByUser(ctx context.Context, userID int64, order Order) ([]models.Activity, error) {
	orderBy := []string{"date DESC", "id DESC"}
	if order == OldestFirst {
		orderBy = []string{"date", "id"}
	}
	query, args, err := sq.Select(activityColumns...).
		From("activities").
		Where(sq.Eq{"user_id": userID}).
		OrderBy(orderBy...).
		ToSql()
	if err != nil {
		return nil, err
	}
	activities := []models.Activity{}
	if err := s.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// DeleteActivity removes activity id if userID owns it and reports how many
// rows went away.
func (s *Store) DeleteActivity(ctx context.Context, userID, id int64) (int64, error) {
	query, args, err := sq.Delete("activities").Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete activity: %w", err)
	}
	return res.RowsAffected()
}

// ActivityStats computes the raw (unrounded) aggregates for userID.
func (s *Store) ActivityStats(ctx context.Context, userID int64) (models.Stats, error) {
	st := models.Stats{ActivitiesByDate: []models.DateAggregate{}}

	query, args, err := sq.Select(
		"COUNT(DISTINCT date) AS total_days",
		"COUNT(*) AS total_activities",
		nonZeroAvg+" AS avg_score",
	).From("activities").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return st, err
	}
	var totals struct {
		TotalDays       int     `db:"total_days"`
		TotalActivities int     `db:"total_activities"`
		AvgScore        float64 `db:"avg_score"`
	}
	if err := s.db.GetContext(ctx, &totals, query, args...); err != nil {
		return st, fmt.Errorf("activity totals: %w", err)
	}
	st.TotalDays = totals.TotalDays
	st.TotalActivities = totals.TotalActivities
	st.AvgScore = totals.AvgScore

	query, args, err = sq.Select(
		"date",
		"COUNT(*) AS count",
		nonZeroAvg+" AS avg_score",
	).From("activities").
		Where(sq.Eq{"user_id": userID}).
		GroupBy("date").
		OrderBy("date").
		ToSql()
	if err != nil {
		return st, err
	}
	if err := s.db.SelectContext(ctx, &st.ActivitiesByDate, query, args...); err != nil {
		return st, fmt.Errorf("activities by date: %w", err)
	}
	return st, nil
}
