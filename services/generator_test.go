package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/fallenleaves/ai"
	"github.com/cppla/fallenleaves/models"
)

func habitWithEntries(t *testing.T, f *fixture, values ...float64) *models.Habit {
	t.Helper()
	h := f.habit(t, "recycling", "increase")
	// leave the habit without an active insight, as after a goal crossing
	active := h.ActiveInsight
	active.Complete(time.Now())
	require.NoError(t, f.store.Insights.SaveProgress(context.Background(), active))
	for _, v := range values {
		e := models.Entry{HabitID: h.ID, Value: v, Unit: "kg", Date: time.Date(2024, 2, 3, 12, 0, 0, 0, time.UTC)}
		require.NoError(t, f.store.Entries.Append(context.Background(), &e))
	}
	habit, err := f.store.Habits.Get(context.Background(), f.user.ID, h.ID)
	require.NoError(t, err)
	return habit
}

func TestGeneratePersistsParsedInsight(t *testing.T) {
	text := "  Recycling is trending up.\n**Tip**: sort glass. [GOAL: 35] [TITLE: Glass Month]  "
	f := newFixture(t, &fakeCompleter{responses: []string{text}})
	habit := habitWithEntries(t, f, 12, 18.5)

	insight, err := f.svc.Generator.Generate(context.Background(), habit)
	require.NoError(t, err)
	assert.NotZero(t, insight.ID)
	assert.Equal(t, 35, insight.SuggestedGoal)
	assert.Equal(t, "Glass Month", insight.InsightTitle)
	assert.Equal(t, "Recycling is trending up.\n**Tip**: sort glass. [GOAL: 35] [TITLE: Glass Month]", insight.InsightText)
	assert.Zero(t, insight.Current)
	assert.False(t, insight.Completed)
	assert.Equal(t, f.user.ID, insight.UserID)

	stored, err := f.store.Insights.Active(context.Background(), habit.ID)
	require.NoError(t, err)
	assert.Equal(t, insight.ID, stored.ID)

	assert.Contains(t, f.ai.lastPrompt(), "2/3/2024, 12, kg\n2/3/2024, 18.5, kg\n")
	assert.Contains(t, f.ai.lastPrompt(), "[GOAL: number]")
	assert.Contains(t, f.ai.lastPrompt(), "[TITLE: string]")
}

func TestGenerateFailuresPersistNothing(t *testing.T) {
	cases := []struct {
		name   string
		ai     *fakeCompleter
		target error
	}{
		{"missing key", &fakeCompleter{errs: []error{ai.ErrMissingAPIKey}}, ErrMissingAPIKey},
		{"rate limited", &fakeCompleter{errs: []error{ai.ErrRateLimited}}, ai.ErrRateLimited},
		{"status error", &fakeCompleter{errs: []error{&ai.StatusError{StatusCode: 500}}}, nil},
		{"no goal", &fakeCompleter{responses: []string{"[TITLE: Only title]"}}, ErrInsightParse},
		{"zero goal", &fakeCompleter{responses: []string{"[GOAL: 0] [TITLE: Zero]"}}, ErrInsightParse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.ai)
			habit := habitWithEntries(t, f, 5)

			insight, err := f.svc.Generator.Generate(context.Background(), habit)
			require.Error(t, err)
			assert.Nil(t, insight)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			} else {
				var se *ai.StatusError
				assert.True(t, errors.As(err, &se))
			}
			assert.Equal(t, int64(0), f.activeCount(t, habit.ID))
			assert.Len(t, f.insights(t, habit.ID), 1)
		})
	}
}

func TestGenerateRefusesSecondActiveInsight(t *testing.T) {
	f := newFixture(t, nil)
	h := f.habit(t, "recycling", "increase")
	habit, err := f.store.Habits.Get(context.Background(), f.user.ID, h.ID)
	require.NoError(t, err)

	_, err = f.svc.Generator.Generate(context.Background(), habit)
	assert.ErrorIs(t, err, ErrActiveInsightExists)
	assert.Equal(t, int64(1), f.activeCount(t, h.ID))
}

func TestFormatHabit(t *testing.T) {
	habit := &models.Habit{
		HabitName: models.HabitEnergyUsage,
		HabitGoal: models.GoalReduce,
		Entries: []models.Entry{
			{Date: time.Date(2024, 11, 5, 23, 0, 0, 0, time.UTC), Value: 3.25, Unit: "kWh"},
			{Date: time.Date(2025, 1, 9, 1, 0, 0, 0, time.UTC), Value: 4, Unit: "kWh"},
		},
	}
	assert.Equal(t, "Habit: energyUsage\nGoal: reduce\nEntries:\n11/5/2024, 3.25, kWh\n1/9/2025, 4, kWh\n", FormatHabit(habit))
	assert.True(t, len(BuildPrompt("x")) > len(insightInstructions))
}
