package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/fallenleaves/utils"
)

func TestListInsightsByStatus(t *testing.T) {
	f := newFixture(t, &fakeCompleter{fallback: "[GOAL: 30] [TITLE: Again]"})
	a := f.habit(t, "recycling", "increase")
	f.habit(t, "composting", "increase")
	f.record(t, a.ID, 50)

	all, err := f.svc.Insights.ListInsights(context.Background(), f.user.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := f.svc.Insights.ListInsights(context.Background(), f.user.ID, "active")
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, in := range active {
		assert.False(t, in.Completed)
	}

	done, err := f.svc.Insights.ListInsights(context.Background(), f.user.ID, "completed")
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].UserHabitID)

	_, err = f.svc.Insights.ListInsights(context.Background(), f.user.ID, "archived")
	assert.True(t, IsValidation(err))
}

func TestActiveInsightState(t *testing.T) {
	f := newFixture(t, &fakeCompleter{fallback: "no tokens here"})
	h := f.habit(t, "recycling", "increase")

	state, err := f.svc.Insights.ActiveInsight(context.Background(), f.user.ID, h.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Insight)
	assert.False(t, state.Pending)

	f.record(t, h.ID, 60)
	state, err = f.svc.Insights.ActiveInsight(context.Background(), f.user.ID, h.ID)
	require.NoError(t, err)
	assert.Nil(t, state.Insight)
	assert.True(t, state.Pending)

	_, err = f.svc.Insights.ActiveInsight(context.Background(), f.user.ID+1, h.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegenerateInsightRecoversPendingHabit(t *testing.T) {
	f := newFixture(t, &fakeCompleter{responses: []string{
		"garbled answer",
		"Better now. [GOAL: 45] [TITLE: Second Wind]",
	}})
	h := f.habit(t, "recycling", "increase")
	res := f.record(t, h.ID, 50)
	require.True(t, res.InsightPending)

	insight, err := f.svc.Insights.RegenerateInsight(context.Background(), f.user.ID, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, insight.SuggestedGoal)
	assert.Equal(t, "Second Wind", insight.InsightTitle)
	assert.Equal(t, int64(1), f.activeCount(t, h.ID))

	_, err = f.svc.Insights.RegenerateInsight(context.Background(), f.user.ID, h.ID)
	assert.ErrorIs(t, err, ErrActiveInsightExists)
	assert.Equal(t, 2, f.ai.calls())

	next := f.record(t, h.ID, 4)
	assert.Equal(t, insight.ID, next.Insight.ID)
	assert.InDelta(t, 4, next.Insight.Current, 1e-9)
}

func TestRegenerateInsightHeldLock(t *testing.T) {
	f := newFixture(t, &fakeCompleter{responses: []string{"garbled"}})
	h := f.habit(t, "recycling", "increase")
	f.record(t, h.ID, 50)

	name := "insight:regenerate:" + strconv.FormatUint(uint64(h.ID), 10)
	token, ok := utils.TryLock(name, time.Minute)
	require.True(t, ok)
	defer utils.Unlock(name, token)

	_, err := f.svc.Insights.RegenerateInsight(context.Background(), f.user.ID, h.ID)
	assert.ErrorIs(t, err, ErrGenerationInProgress)
	assert.Equal(t, 1, f.ai.calls())
}

func TestRegenerateInsightFailureKeepsPending(t *testing.T) {
	f := newFixture(t, &fakeCompleter{fallback: "[GOAL: nope] [TITLE: Broken]"})
	h := f.habit(t, "recycling", "increase")
	f.record(t, h.ID, 50)

	_, err := f.svc.Insights.RegenerateInsight(context.Background(), f.user.ID, h.ID)
	assert.ErrorIs(t, err, ErrInsightParse)
	assert.Equal(t, int64(0), f.activeCount(t, h.ID))

	// the lock is released after a failure
	_, err = f.svc.Insights.RegenerateInsight(context.Background(), f.user.ID, h.ID)
	assert.ErrorIs(t, err, ErrInsightParse)
}
