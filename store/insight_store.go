package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/fallenleaves/models"
)

// Insight list filters.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAll       = "all"
)

// InsightStore persists insights. At most one insight per habit is active; the unique
// index on active_habit_id enforces it.
type InsightStore struct {
	db *gorm.DB
}

// Create inserts an insight. A second active insight for the habit yields ErrDuplicate.
func (s *InsightStore) Create(ctx context.Context, insight *models.Insight) error {
	return translate(s.db.WithContext(ctx).Create(insight).Error)
}

// Active returns the insight of the habit with completed == false.
func (s *InsightStore) Active(ctx context.Context, habitID uint) (*models.Insight, error) {
	var insight models.Insight
	err := s.db.WithContext(ctx).
		Where("user_habit_id = ? AND completed = ?", habitID, false).
		First(&insight).Error
	if err != nil {
		return nil, translate(err)
	}
	return &insight, nil
}

// Latest returns the most recently added insight of the habit.
func (s *InsightStore) Latest(ctx context.Context, habitID uint) (*models.Insight, error) {
	var insight models.Insight
	err := s.db.WithContext(ctx).
		Where("user_habit_id = ?", habitID).
		Order("date_added DESC, id DESC").
		First(&insight).Error
	if err != nil {
		return nil, translate(err)
	}
	return &insight, nil
}

// CountForHabit returns how many insights a habit has, active or not.
func (s *InsightStore) CountForHabit(ctx context.Context, habitID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Insight{}).Where("user_habit_id = ?", habitID).Count(&n).Error
	return n, err
}

// ListForHabit returns the insights of a habit oldest first.
func (s *InsightStore) ListForHabit(ctx context.Context, habitID uint) ([]models.Insight, error) {
	var insights []models.Insight
	err := s.db.WithContext(ctx).
		Where("user_habit_id = ?", habitID).
		Order("date_added ASC, id ASC").
		Find(&insights).Error
	return insights, err
}

// ListForUser returns the user's insights filtered by status, newest first.
func (s *InsightStore) ListForUser(ctx context.Context, userID uint, status string) ([]models.Insight, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	switch status {
	case StatusActive:
		q = q.Where("completed = ?", false)
	case StatusCompleted:
		q = q.Where("completed = ?", true)
	}
	var insights []models.Insight
	err := q.Order("date_added DESC, id DESC").Find(&insights).Error
	return insights, err
}

// SaveProgress persists the mutable fields of an insight: current and the completion state.
// Only active rows are written, so a completed insight is never reopened. Callers hold the
// habit row lock, which makes the read-modify-write of current race free.
func (s *InsightStore) SaveProgress(ctx context.Context, insight *models.Insight) error {
	res := s.db.WithContext(ctx).Model(&models.Insight{}).
		Where("id = ? AND completed = ?", insight.ID, false).
		Updates(map[string]interface{}{
			"current":         insight.Current,
			"completed":       insight.Completed,
			"completed_at":    insight.CompletedAt,
			"active_habit_id": insight.ActiveHabitID,
		})
	return translate(res.Error)
}
