package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
)

// crossAndEdit records a crossing entry, then rewrites it with its own value.
func crossAndEdit(t *testing.T, f *fixture, kind models.HabitKind) uint {
	t.Helper()
	ctx := context.Background()
	h := f.habit(t, string(kind), "increase")

	res := f.record(t, h.ID, 60)
	require.True(t, res.GoalReached)
	require.NotNil(t, res.NewInsight)
	assert.True(t, res.NewInsight.DateAdded.After(res.Entry.Date), "replacement must be dated after the crossing entry")

	groups, err := f.svc.Habits.PartitionEntries(ctx, f.user.ID, h.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Len(t, groups[0].Entries, 1)
	assert.Equal(t, res.Entry.ID, groups[0].Entries[0].ID)
	assert.Empty(t, groups[1].Entries)

	edit, err := f.svc.Evaluator.EditEntries(ctx, f.user.ID, h.ID, []EntryEdit{{ID: res.Entry.ID, Value: 60}})
	require.NoError(t, err)
	require.NotNil(t, edit.Insight)
	assert.Equal(t, res.NewInsight.ID, edit.Insight.ID)
	assert.Zero(t, edit.Insight.Current)
	assert.False(t, edit.GoalReached)
	return h.ID
}

func TestCrossingEntryStaysWithCompletedInsightOnFrozenClock(t *testing.T) {
	f := newFixture(t, &fakeCompleter{fallback: "[GOAL: 100] [TITLE: Keep going]"})
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f.svc.SetClock(func() time.Time { return frozen })

	habitID := crossAndEdit(t, f, models.HabitRecycling)

	// later entries on the same instant count towards the replacement
	res := f.record(t, habitID, 5)
	require.NotNil(t, res.Insight)
	assert.InDelta(t, 5, res.Insight.Current, 1e-9)

	groups, err := f.svc.Habits.PartitionEntries(context.Background(), f.user.ID, habitID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.InDelta(t, 60, groups[0].Total, 1e-9)
	assert.InDelta(t, res.Insight.Current, groups[1].Total, 1e-9)
}

func TestCrossingEntryStaysWithCompletedInsightOnRealClock(t *testing.T) {
	f := newFixture(t, &fakeCompleter{fallback: "[GOAL: 100] [TITLE: Keep going]"})
	f.svc.SetClock(time.Now)

	for _, info := range models.HabitCatalog() {
		crossAndEdit(t, f, info.Name)
	}
}

// gatedCompleter blocks until released, or until its context is done.
type gatedCompleter struct {
	failFirst bool
	started   chan struct{}
	release   chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedCompleter(failFirst bool) *gatedCompleter {
	return &gatedCompleter{failFirst: failFirst, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if g.failFirst && n == 1 {
		return "no tokens here", nil
	}

	close(g.started)
	select {
	case <-g.release:
		return "[GOAL: 70] [TITLE: Later]", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func newGatedServices(t *testing.T, c Completer) (*Services, models.User) {
	t.Helper()
	st := store.New(newTestDB(t))
	svc := New(st, c, nil, Options{SeedGoal: 50})
	svc.SetClock(newStepClock().Now)
	user := models.User{Username: "gated"}
	require.NoError(t, st.DB().Create(&user).Error)
	return svc, user
}

func TestReplacementSurvivesCancelledCaller(t *testing.T) {
	gc := newGatedCompleter(false)
	svc, user := newGatedServices(t, gc)
	h, err := svc.Habits.CreateHabit(context.Background(), user.ID, "recycling", "increase")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var res *RecordResult
	go func() {
		defer close(done)
		res, err = svc.Evaluator.RecordEntry(ctx, user.ID, h.ID, EntryInput{Value: 55})
	}()

	<-gc.started
	cancel()
	close(gc.release)
	<-done

	require.NoError(t, err)
	assert.True(t, res.GoalReached)
	assert.False(t, res.InsightPending)
	assert.Empty(t, res.GenerationError)
	require.NotNil(t, res.NewInsight)
	assert.Equal(t, 70, res.NewInsight.SuggestedGoal)
}

func TestRegenerationSurvivesCancelledCaller(t *testing.T) {
	gc := newGatedCompleter(true)
	svc, user := newGatedServices(t, gc)
	h, err := svc.Habits.CreateHabit(context.Background(), user.ID, "composting", "increase")
	require.NoError(t, err)

	first, err := svc.Evaluator.RecordEntry(context.Background(), user.ID, h.ID, EntryInput{Value: 55})
	require.NoError(t, err)
	require.True(t, first.InsightPending)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var insight *models.Insight
	go func() {
		defer close(done)
		insight, err = svc.Insights.RegenerateInsight(ctx, user.ID, h.ID)
	}()

	<-gc.started
	cancel()
	close(gc.release)
	<-done

	require.NoError(t, err)
	require.NotNil(t, insight)
	assert.Equal(t, "Later", insight.InsightTitle)
}
