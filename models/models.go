package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Email        string    `db:"email" json:"email"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is a user row as listed on the admin dashboard.
type UserSummary struct {
	User
	ActivityCount int `db:"activity_count" json:"activity_count"`
}

type Activity struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	Date          string    `db:"date" json:"date"`
	ActivityName  string    `db:"activity_name" json:"activity_name"`
	Description   string    `db:"description" json:"description"`
	Duration      int       `db:"duration" json:"duration"`
	ProgressScore int       `db:"progress_score" json:"progress_score"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// NewActivity carries the fields of a log entry before it is stored.
// Optional numeric fields are zero when the client leaves them out.
type NewActivity struct {
	Date          string `json:"date"`
	ActivityName  string `json:"activity_name"`
	Description   string `json:"description"`
	Duration      int    `json:"duration"`
	ProgressScore int    `json:"progress_score"`
	Notes         string `json:"notes"`
}

type Milestone struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	MilestoneDay int       `db:"milestone_day" json:"milestone_day"`
	Insights     RawJSON   `db:"insights" json:"insights"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Insights is the payload stored with each milestone snapshot.
type Insights struct {
	MilestoneDay         int            `json:"milestone_day"`
	TotalActivities      int            `json:"total_activities"`
	AvgProgressScore     float64        `json:"avg_progress_score"`
	UniqueActivityTypes  int            `json:"unique_activity_types"`
	TotalDurationHours   float64        `json:"total_duration_hours"`
	ActivityDistribution map[string]int `json:"activity_distribution"`
	Activities           []Activity     `json:"activities"`
}

type DateAggregate struct {
	Date     string  `db:"date" json:"date"`
	Count    int     `db:"count" json:"count"`
	AvgScore float64 `db:"avg_score" json:"avg_score"`
}

type Stats struct {
	TotalDays        int             `json:"total_days"`
	TotalActivities  int             `json:"total_activities"`
	AvgScore         float64         `json:"avg_score"`
	ActivitiesByDate []DateAggregate `json:"activities_by_date"`
}

type ActiveUser struct {
	ID            int64  `db:"id" json:"id"`
	Username      string `db:"username" json:"username"`
	ActivityCount int    `db:"activity_count" json:"activity_count"`
}

type SystemStats struct {
	TotalUsers      int          `json:"total_users"`
	TotalActivities int          `json:"total_activities"`
	TotalAdmins     int          `json:"total_admins"`
	ActiveUsers     []ActiveUser `json:"active_users"`
}

// RawJSON is a JSON document stored in a TEXT column and passed through
// to API responses without being decoded.
type RawJSON json.RawMessage

func (r *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case string:
		*r = RawJSON(v)
	case []byte:
		*r = append((*r)[:0], v...)
	default:
		return fmt.Errorf("models: cannot scan %T into RawJSON", src)
	}
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}
