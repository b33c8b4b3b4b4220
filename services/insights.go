package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
	"github.com/cppla/fallenleaves/utils"
)

// InsightState is the insight view of one habit.
type InsightState struct {
	HabitID uint            `json:"habit_id"`
	Insight *models.Insight `json:"insight"`
	// Pending means the last insight was completed and its replacement could not be generated.
	Pending bool `json:"pending"`
}

// InsightService answers insight queries and regenerates missing insights.
type InsightService struct {
	*core
	gen     *Generator
	lockTTL time.Duration
	log     *zap.Logger
}

// ListInsights returns the user's insights, newest first. status is active, completed or all.
func (s *InsightService) ListInsights(ctx context.Context, userID uint, status string) ([]models.Insight, error) {
	switch status {
	case "":
		status = store.StatusAll
	case store.StatusActive, store.StatusCompleted, store.StatusAll:
	default:
		ve := &ValidationError{}
		ve.Add("status", "must be one of active, completed, all")
		return nil, ve
	}
	insights, err := s.store.Insights.ListForUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	return insights, nil
}

// ActiveInsight returns the active insight of a habit, or a pending state when there is none.
func (s *InsightService) ActiveInsight(ctx context.Context, userID, habitID uint) (*InsightState, error) {
	habit, err := s.store.Habits.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	state := &InsightState{HabitID: habit.ID}
	active, err := s.store.Insights.Active(ctx, habit.ID)
	if err == nil {
		state.Insight = active
		return state, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load active insight: %w", err)
	}
	state.Pending = true
	return state, nil
}

// RegenerateInsight generates a new active insight for a habit left without one after a
// failed generation. Habits that still have an active insight are rejected.
func (s *InsightService) RegenerateInsight(ctx context.Context, userID, habitID uint) (*models.Insight, error) {
	lockName := "insight:regenerate:" + strconv.FormatUint(uint64(habitID), 10)
	token, ok := utils.TryLock(lockName, s.lockTTL)
	if !ok {
		return nil, ErrGenerationInProgress
	}
	defer utils.Unlock(lockName, token)

	unlock := s.locks.Lock(habitID)
	defer unlock()

	habit, err := s.store.Habits.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Insights.Active(ctx, habit.ID); err == nil {
		return nil, ErrActiveInsightExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load active insight: %w", err)
	}

	n, err := s.store.Insights.CountForHabit(ctx, habit.ID)
	if err != nil {
		return nil, fmt.Errorf("count insights: %w", err)
	}
	var insight *models.Insight
	if n == 0 {
		insight, err = s.seedInsight(ctx, s.store, habit, s.now())
		if errors.Is(err, store.ErrDuplicate) {
			err = ErrActiveInsightExists
		}
	} else {
		genCtx, cancel := s.detach(ctx)
		insight, err = s.gen.Generate(genCtx, habit)
		cancel()
	}
	if err != nil {
		return nil, err
	}

	invalidateDashboard(userID)
	s.log.Info("insight regenerated", zap.Uint("habit_id", habit.ID), zap.Uint("insight_id", insight.ID))
	return insight, nil
}
