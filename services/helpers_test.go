package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/fallenleaves/config"
	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
)

func TestMain(m *testing.M) {
	// no Redis configured: cache and locks use their in-process fallbacks
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
	os.Exit(m.Run())
}

// fakeCompleter replays canned answers in order, then repeats fallback.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	fallback  string
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if f.fallback != "" {
		return f.fallback, nil
	}
	return "Nice work. [GOAL: 100] [TITLE: Keep going]", nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db, store.Models()...))
	return db
}

type fixture struct {
	svc   *Services
	store *store.Store
	ai    *fakeCompleter
	user  models.User
}

func newFixture(t *testing.T, ai *fakeCompleter) *fixture {
	t.Helper()
	if ai == nil {
		ai = &fakeCompleter{}
	}
	st := store.New(newTestDB(t))
	svc := New(st, ai, nil, Options{SeedGoal: 50})
	svc.SetClock(newStepClock().Now)

	user := models.User{Username: "leaf", Email: "leaf@example.com"}
	require.NoError(t, st.DB().Create(&user).Error)
	return &fixture{svc: svc, store: st, ai: ai, user: user}
}

func (f *fixture) habit(t *testing.T, name, goal string) *HabitDetail {
	t.Helper()
	h, err := f.svc.Habits.CreateHabit(context.Background(), f.user.ID, name, goal)
	require.NoError(t, err)
	return h
}

func (f *fixture) record(t *testing.T, habitID uint, value float64) *RecordResult {
	t.Helper()
	res, err := f.svc.Evaluator.RecordEntry(context.Background(), f.user.ID, habitID, EntryInput{Value: value})
	require.NoError(t, err)
	return res
}

// activeCount counts insights of the habit with completed == false.
func (f *fixture) activeCount(t *testing.T, habitID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.store.DB().Model(&models.Insight{}).
		Where("user_habit_id = ? AND completed = ?", habitID, false).
		Count(&n).Error)
	return n
}

func (f *fixture) insights(t *testing.T, habitID uint) []models.Insight {
	t.Helper()
	list, err := f.store.Insights.ListForHabit(context.Background(), habitID)
	require.NoError(t, err)
	return list
}
