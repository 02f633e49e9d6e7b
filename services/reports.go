package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"neurallog/apperr"
	"neurallog/auth"
	"neurallog/db"
	"neurallog/models"
)

// MilestoneDays are the only day counts a snapshot can be tagged with.
var MilestoneDays = []int{10, 25, 45, 70, 100}

func ValidMilestoneDay(day int) bool {
	return slices.Contains(MilestoneDays, day)
}

type ReportStore interface {
	ActivityStats(ctx context.Context, userID int64) (models.Stats, error)
	ActivitiesByUser(ctx context.Context, userID int64, order db.Order) ([]models.Activity, error)
	InsertMilestone(ctx context.Context, userID int64, day int, insights []byte) (int64, error)
	MilestonesByUser(ctx context.Context, userID int64) ([]models.Milestone, error)
}

// Reports computes aggregate statistics and milestone snapshots.
type Reports struct {
	store ReportStore
}

func NewReports(store ReportStore) *Reports {
	return &Reports{store: store}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Stats summarises owner's log. Zero scores count as unset and are left
// out of every average; with no scored entries the average is 0.
func (s *Reports) Stats(ctx context.Context, owner auth.Identity) (models.Stats, error) {
	st, err := s.store.ActivityStats(ctx, owner.UserID)
	if err != nil {
		return st, err
	}
	st.AvgScore = round2(st.AvgScore)
	for i := range st.ActivitiesByDate {
		st.ActivitiesByDate[i].AvgScore = round2(st.ActivitiesByDate[i].AvgScore)
	}
	return st, nil
}

// Milestone snapshots owner's whole history under the label day and
// stores it as a new row. The day is only a label; activities are not
// filtered by it.
func (s *Reports) Milestone(ctx context.Context, owner auth.Identity, day int) (models.Insights, error) {
	if !ValidMilestoneDay(day) {
		return models.Insights{}, apperr.Validation(MsgInvalidMilestoneDay)
	}

	activities, err := s.store.ActivitiesByUser(ctx, owner.UserID, db.OldestFirst)
	if err != nil {
		return models.Insights{}, err
	}
	insights := BuildInsights(day, activities)

	payload, err := json.Marshal(insights)
	if err != nil {
		return models.Insights{}, fmt.Errorf("encode insights: %w", err)
	}
	if _, err := s.store.InsertMilestone(ctx, owner.UserID, day, payload); err != nil {
		return models.Insights{}, err
	}
	return insights, nil
}

// Milestones returns owner's stored snapshots, newest first.
func (s *Reports) Milestones(ctx context.Context, owner auth.Identity) ([]models.Milestone, error) {
	return s.store.MilestonesByUser(ctx, owner.UserID)
}

// BuildInsights derives the milestone metrics from activities.
func BuildInsights(day int, activities []models.Activity) models.Insights {
	in := models.Insights{
		MilestoneDay:         day,
		TotalActivities:      len(activities),
		ActivityDistribution: map[string]int{},
		Activities:           activities,
	}
	if in.Activities == nil {
		in.Activities = []models.Activity{}
	}

	var scoreSum, scored, minutes int
	for _, a := range activities {
		if a.ProgressScore != 0 {
			scoreSum += a.ProgressScore
			scored++
		}
		minutes += a.Duration
		in.ActivityDistribution[a.ActivityName]++
	}
	if scored > 0 {
		in.AvgProgressScore = round2(float64(scoreSum) / float64(scored))
	}
	in.UniqueActivityTypes = len(in.ActivityDistribution)
	in.TotalDurationHours = round2(float64(minutes) / 60)
	return in
}
