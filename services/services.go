// Package services implements the habit tracker: entry recording with the insight
// lifecycle, insight generation, habit management and dashboards.
package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
	"github.com/cppla/fallenleaves/utils"
)

const (
	// DefaultSeedGoal is the suggested goal of the first insight of every habit.
	DefaultSeedGoal = 50

	seedInsightTitle = "Getting started"
	seedInsightText  = "Log your first entries to build a baseline. Reach this starting goal and a personalised insight will be generated from your data."
)

// Options tunes the services. Zero values fall back to defaults.
type Options struct {
	SeedGoal          int
	RegenerateLockTTL time.Duration
	DashboardTTL      time.Duration
	// GenerationTimeout bounds insight generation once it no longer follows the caller.
	GenerationTimeout time.Duration
}

// Services bundles every service over one store.
type Services struct {
	Habits    *HabitService
	Evaluator *Evaluator
	Insights  *InsightService
	Dashboard *DashboardService
	Generator *Generator
}

// core carries what the services share. locks serialises work per habit inside this process.
type core struct {
	store      *store.Store
	locks      *utils.KeyedMutex
	log        *zap.Logger
	seedGoal   int
	now        func() time.Time
	genTimeout time.Duration
}

// New wires the services together.
func New(st *store.Store, completer Completer, log *zap.Logger, opts Options) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SeedGoal <= 0 {
		opts.SeedGoal = DefaultSeedGoal
	}
	if opts.RegenerateLockTTL <= 0 {
		opts.RegenerateLockTTL = 90 * time.Second
	}
	if opts.DashboardTTL <= 0 {
		opts.DashboardTTL = time.Minute
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 5 * time.Minute
	}

	// the regeneration lock must outlive the generation it guards
	if opts.RegenerateLockTTL < opts.GenerationTimeout {
		opts.RegenerateLockTTL = opts.GenerationTimeout
	}

	c := &core{
		store:      st,
		locks:      utils.NewKeyedMutex(),
		log:        log,
		seedGoal:   opts.SeedGoal,
		now:        time.Now,
		genTimeout: opts.GenerationTimeout,
	}
	gen := NewGenerator(st, completer, log)
	return &Services{
		Habits:    &HabitService{core: c, log: log.Named("habits")},
		Evaluator: &Evaluator{core: c, gen: gen, log: log.Named("evaluator")},
		Insights:  &InsightService{core: c, gen: gen, lockTTL: opts.RegenerateLockTTL, log: log.Named("insights")},
		Dashboard: &DashboardService{core: c, ttl: opts.DashboardTTL},
		Generator: gen,
	}
}

// SetClock replaces the time source of every service. Used by tests.
func (s *Services) SetClock(now func() time.Time) {
	s.Habits.core.now = now
	s.Generator.now = now
}

// detach returns a context that outlives the caller's cancellation, bounded by genTimeout.
// A generation that was started must finish so the habit is not left without an insight.
func (c *core) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.genTimeout)
}

func (c *core) seedInsight(ctx context.Context, tx *store.Store, habit *models.Habit, at time.Time) (*models.Insight, error) {
	insight := models.NewActiveInsight(habit.UserID, habit.ID, seedInsightTitle, seedInsightText, c.seedGoal, at)
	if err := tx.Insights.Create(ctx, insight); err != nil {
		return nil, err
	}
	return insight, nil
}

func dashboardKey(userID uint) string {
	return "dashboard:user:" + strconv.FormatUint(uint64(userID), 10)
}

func invalidateDashboard(userID uint) {
	utils.CacheDelete(dashboardKey(userID))
}
