package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/fallenleaves/ai"
	"github.com/cppla/fallenleaves/metrics"
	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
)

// Completer returns the completion text for a system/user message pair.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Generator turns a habit's history into a new active insight through the completion service.
type Generator struct {
	store *store.Store
	ai    Completer
	log   *zap.Logger
	now   func() time.Time
}

// NewGenerator builds a Generator.
func NewGenerator(st *store.Store, completer Completer, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		store: st,
		ai:    completer,
		log:   log.Named("generator"),
		now:   time.Now,
	}
}

// Generate asks the model for a new insight and persists it as the habit's active insight.
// habit must carry its entries. Nothing is written when the call or the parse fails.
func (g *Generator) Generate(ctx context.Context, habit *models.Habit) (*models.Insight, error) {
	prompt := BuildPrompt(FormatHabit(habit))
	log := g.log.With(zap.Uint("habit_id", habit.ID), zap.Int("entries", len(habit.Entries)))

	text, err := g.ai.Complete(ctx, ai.DefaultSystemPrompt, prompt)
	if err != nil {
		if errors.Is(err, ai.ErrMissingAPIKey) {
			metrics.Generation(metrics.ResultMissingKey)
			log.Error("insight generation skipped: completion API key is not configured")
			return nil, ErrMissingAPIKey
		}
		metrics.Generation(metrics.ResultServiceError)
		log.Warn("completion call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	parsed, err := ParseInsight(text)
	if err != nil {
		metrics.Generation(metrics.ResultParseError)
		log.Warn("completion could not be parsed", zap.Error(err), zap.Int("response_len", len(text)))
		return nil, err
	}

	insight := models.NewActiveInsight(habit.UserID, habit.ID, parsed.Title, strings.TrimSpace(text), parsed.Goal, g.dateAfterEntries(habit))
	if err := g.store.Insights.Create(ctx, insight); err != nil {
		metrics.Generation(metrics.ResultStoreError)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrActiveInsightExists
		}
		return nil, fmt.Errorf("save insight: %w", err)
	}

	metrics.Generation(metrics.ResultSuccess)
	log.Info("insight generated",
		zap.Uint("insight_id", insight.ID),
		zap.Int("suggested_goal", insight.SuggestedGoal),
		zap.String("title", insight.InsightTitle),
	)
	return insight, nil
}

// dateAfterEntries returns now, moved past the habit's latest entry when needed so that
// no existing entry falls into the new insight's partition.
func (g *Generator) dateAfterEntries(habit *models.Habit) time.Time {
	at := models.NormalizeTime(g.now())
	for _, e := range habit.Entries {
		if !at.After(e.Date) {
			at = models.NormalizeTime(e.Date).Add(time.Millisecond)
		}
	}
	return at
}
