package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
)

// HabitDetail is a habit with its unit and current insight state.
type HabitDetail struct {
	models.Habit
	Unit           string          `json:"unit"`
	ActiveInsight  *models.Insight `json:"active_insight"`
	InsightPending bool            `json:"insight_pending"`
}

// HabitService manages the habits of a user.
type HabitService struct {
	*core
	log *zap.Logger
}

// Catalog lists the habit kinds a user can track.
func (s *HabitService) Catalog() []models.HabitKindInfo {
	return models.HabitCatalog()
}

// CreateHabit validates the request, then creates the habit and its seed insight in one
// transaction.
func (s *HabitService) CreateHabit(ctx context.Context, userID uint, habitName, habitGoal string) (*HabitDetail, error) {
	kind := models.HabitKind(strings.TrimSpace(habitName))
	goal := models.GoalDirection(strings.TrimSpace(habitGoal))

	ve := &ValidationError{}
	if kind == "" {
		ve.Add("habit_name", "please select a habit")
	} else if !kind.Valid() {
		ve.Add("habit_name", "unknown habit")
	}
	if goal == "" {
		ve.Add("habit_goal", "please select a goal")
	} else if !goal.Valid() {
		ve.Add("habit_goal", "must be one of increase, maintain, reduce")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	exists, err := s.store.Habits.Exists(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("check habit: %w", err)
	}
	if exists {
		return nil, ErrDuplicateHabit
	}

	habit := &models.Habit{UserID: userID, HabitName: kind, HabitGoal: goal}
	var seed *models.Insight
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.Habits.Create(ctx, habit); err != nil {
			return err
		}
		seed, err = s.seedInsight(ctx, tx, habit, s.now())
		return err
	})
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race with a concurrent create of the same kind
		return nil, ErrDuplicateHabit
	}
	if err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}

	invalidateDashboard(userID)
	s.log.Info("habit created",
		zap.Uint("user_id", userID),
		zap.Uint("habit_id", habit.ID),
		zap.String("habit_name", string(kind)),
		zap.Int("seed_goal", seed.SuggestedGoal),
	)
	habit.Entries = []models.Entry{}
	return &HabitDetail{Habit: *habit, Unit: habit.Unit(), ActiveInsight: seed}, nil
}

// ListHabits returns the user's habits with entries and active insights.
func (s *HabitService) ListHabits(ctx context.Context, userID uint) ([]HabitDetail, error) {
	habits, err := s.store.Habits.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	out := make([]HabitDetail, 0, len(habits))
	for i := range habits {
		d, err := s.detail(ctx, &habits[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// GetHabit returns one habit of the user.
func (s *HabitService) GetHabit(ctx context.Context, userID, habitID uint) (*HabitDetail, error) {
	habit, err := s.store.Habits.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, habit)
}

// UpdateHabitGoal changes the qualitative goal of a habit.
func (s *HabitService) UpdateHabitGoal(ctx context.Context, userID, habitID uint, habitGoal string) error {
	goal := models.GoalDirection(strings.TrimSpace(habitGoal))
	if !goal.Valid() {
		ve := &ValidationError{}
		ve.Add("habit_goal", "must be one of increase, maintain, reduce")
		return ve
	}
	if err := s.store.Habits.UpdateGoal(ctx, userID, habitID, goal); err != nil {
		return err
	}
	invalidateDashboard(userID)
	return nil
}

// PartitionEntries groups a habit's entries by the insight they are attributed to,
// oldest insight first.
func (s *HabitService) PartitionEntries(ctx context.Context, userID, habitID uint) ([]models.InsightEntries, error) {
	habit, err := s.store.Habits.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	insights, err := s.store.Insights.ListForHabit(ctx, habit.ID)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	groups := models.PartitionEntries(insights, habit.Entries)
	if groups == nil {
		groups = []models.InsightEntries{}
	}
	return groups, nil
}

func (s *HabitService) detail(ctx context.Context, habit *models.Habit) (*HabitDetail, error) {
	if habit.Entries == nil {
		habit.Entries = []models.Entry{}
	}
	d := &HabitDetail{Habit: *habit, Unit: habit.Unit()}
	active, err := s.store.Insights.Active(ctx, habit.ID)
	switch {
	case err == nil:
		d.ActiveInsight = active
	case errors.Is(err, store.ErrNotFound):
		n, err := s.store.Insights.CountForHabit(ctx, habit.ID)
		if err != nil {
			return nil, fmt.Errorf("count insights: %w", err)
		}
		d.InsightPending = n > 0
	default:
		return nil, fmt.Errorf("load active insight: %w", err)
	}
	return d, nil
}
