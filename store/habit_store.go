package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/fallenleaves/models"
)

// HabitStore persists habits scoped to their owner.
type HabitStore struct {
	db *gorm.DB
}

// Exists reports whether the user already tracks a habit of this kind.
func (s *HabitStore) Exists(ctx context.Context, userID uint, kind models.HabitKind) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Habit{}).
		Where("user_id = ? AND habit_name = ?", userID, kind).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a habit. A second habit of the same kind for a user yields ErrDuplicate.
func (s *HabitStore) Create(ctx context.Context, habit *models.Habit) error {
	return translate(s.db.WithContext(ctx).Omit("Entries").Create(habit).Error)
}

// Get loads a habit owned by userID together with its entries in chronological order.
func (s *HabitStore) Get(ctx context.Context, userID, habitID uint) (*models.Habit, error) {
	var habit models.Habit
	err := s.db.WithContext(ctx).
		Preload("Entries", orderEntries).
		Where("id = ? AND user_id = ?", habitID, userID).
		First(&habit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &habit, nil
}

// List returns all habits of a user with their entries.
func (s *HabitStore) List(ctx context.Context, userID uint) ([]models.Habit, error) {
	var habits []models.Habit
	err := s.db.WithContext(ctx).
		Preload("Entries", orderEntries).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&habits).Error
	return habits, err
}

// UpdateGoal changes the qualitative goal of a habit.
func (s *HabitStore) UpdateGoal(ctx context.Context, userID, habitID uint, goal models.GoalDirection) error {
	var habit models.Habit
	if err := s.db.WithContext(ctx).Select("id").
		Where("id = ? AND user_id = ?", habitID, userID).
		First(&habit).Error; err != nil {
		return translate(err)
	}
	return s.db.WithContext(ctx).Model(&habit).Update("habit_goal", goal).Error
}

func orderEntries(db *gorm.DB) *gorm.DB {
	return db.Order("date ASC, id ASC")
}
