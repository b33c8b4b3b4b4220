package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
	"github.com/cppla/fallenleaves/utils"
)

// DashboardInsight summarises the progress of an active insight.
type DashboardInsight struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	Current       float64 `json:"current"`
	SuggestedGoal int     `json:"suggested_goal"`
	Percent       float64 `json:"percent"`
}

// DashboardHabit is one habit card.
type DashboardHabit struct {
	ID                uint                 `json:"id"`
	HabitName         models.HabitKind     `json:"habit_name"`
	HabitGoal         models.GoalDirection `json:"habit_goal"`
	Unit              string               `json:"unit"`
	EntryCount        int                  `json:"entry_count"`
	Total             float64              `json:"total"`
	LastEntryAt       *time.Time           `json:"last_entry_at"`
	ActiveInsight     *DashboardInsight    `json:"active_insight"`
	InsightPending    bool                 `json:"insight_pending"`
	CompletedInsights int                  `json:"completed_insights"`
}

// Dashboard is the per-user overview.
type Dashboard struct {
	Habits            []DashboardHabit `json:"habits"`
	TotalEntries      int              `json:"total_entries"`
	CompletedInsights int              `json:"completed_insights"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// DashboardService builds dashboards, cached per user in Redis when available.
type DashboardService struct {
	*core
	ttl time.Duration
}

// Dashboard returns the overview of a user's habits and insights.
func (s *DashboardService) Dashboard(ctx context.Context, userID uint) (*Dashboard, error) {
	key := dashboardKey(userID)
	var cached Dashboard
	if utils.CacheGetJSON(key, &cached) {
		return &cached, nil
	}

	habits, err := s.store.Habits.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	insights, err := s.store.Insights.ListForUser(ctx, userID, store.StatusAll)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}

	byHabit := make(map[uint][]models.Insight, len(habits))
	for _, in := range insights {
		byHabit[in.UserHabitID] = append(byHabit[in.UserHabitID], in)
	}

	d := &Dashboard{Habits: make([]DashboardHabit, 0, len(habits)), GeneratedAt: s.now().UTC()}
	for _, h := range habits {
		card := DashboardHabit{
			ID:         h.ID,
			HabitName:  h.HabitName,
			HabitGoal:  h.HabitGoal,
			Unit:       h.Unit(),
			EntryCount: len(h.Entries),
			Total:      h.TotalValue(),
		}
		if n := len(h.Entries); n > 0 {
			last := h.Entries[n-1].Date
			card.LastEntryAt = &last
		}
		hi := byHabit[h.ID]
		for i := range hi {
			if hi[i].Completed {
				card.CompletedInsights++
				continue
			}
			card.ActiveInsight = &DashboardInsight{
				ID:            hi[i].ID,
				Title:         hi[i].InsightTitle,
				Current:       hi[i].Current,
				SuggestedGoal: hi[i].SuggestedGoal,
				Percent:       hi[i].Percent(),
			}
		}
		card.InsightPending = card.ActiveInsight == nil && len(hi) > 0
		d.Habits = append(d.Habits, card)
		d.TotalEntries += card.EntryCount
		d.CompletedInsights += card.CompletedInsights
	}

	utils.CacheSetJSON(key, d, s.ttl)
	return d, nil
}
