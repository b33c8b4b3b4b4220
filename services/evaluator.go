package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/fallenleaves/metrics"
	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/store"
)

// EntryInput is a new entry submitted by the user. An empty Unit takes the habit's unit.
type EntryInput struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// EntryEdit rewrites an existing entry. A nil Date keeps the recorded timestamp.
type EntryEdit struct {
	ID    uint       `json:"id"`
	Value float64    `json:"value"`
	Date  *time.Time `json:"date,omitempty"`
}

// InsightOutcome reports what an entry write did to the habit's insights.
//
// GoalReached is set only for the call that completed the insight. When generation of the
// replacement fails, InsightPending is set and GenerationError says why; the entry and the
// completion are kept.
type InsightOutcome struct {
	Insight         *models.Insight `json:"insight,omitempty"`
	GoalReached     bool            `json:"goal_reached"`
	NewInsight      *models.Insight `json:"new_insight,omitempty"`
	InsightPending  bool            `json:"insight_pending"`
	GenerationError string          `json:"generation_error,omitempty"`
}

// RecordResult is returned by RecordEntry.
type RecordResult struct {
	Entry models.Entry `json:"entry"`
	InsightOutcome
}

// EditResult is returned by EditEntries.
type EditResult struct {
	Entries []models.Entry `json:"entries"`
	InsightOutcome
}

// Evaluator keeps one active insight per habit while entries are written.
type Evaluator struct {
	*core
	gen *Generator
	log *zap.Logger
}

// RecordEntry appends an entry and advances the habit's active insight.
//
// Append, progress update and completion commit together under a row lock on the habit.
// Only the call that flips the insight to completed asks for a replacement, after commit.
func (e *Evaluator) RecordEntry(ctx context.Context, userID, habitID uint, in EntryInput) (*RecordResult, error) {
	if err := validateEntryValue("value", in.Value, false); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(habitID)
	defer unlock()

	now := models.NormalizeTime(e.now())
	res := &RecordResult{}
	var crossed bool
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		habit, err := tx.LockHabit(ctx, userID, habitID)
		if err != nil {
			return err
		}

		active, err := e.activeOrSeed(ctx, tx, habit, now)
		if err != nil {
			return err
		}

		res.Entry = models.Entry{
			HabitID: habit.ID,
			Date:    now,
			Value:   in.Value,
			Unit:    strings.TrimSpace(in.Unit),
		}
		// an entry never predates the insight it counts towards
		if active != nil && now.Before(active.DateAdded) {
			res.Entry.Date = active.DateAdded
		}
		if res.Entry.Unit == "" {
			res.Entry.Unit = habit.Unit()
		}
		if err := tx.Entries.Append(ctx, &res.Entry); err != nil {
			return fmt.Errorf("append entry: %w", err)
		}

		if active == nil {
			res.InsightPending = true
			return nil
		}

		active.Current += in.Value
		crossed = e.advance(active, now)
		if err := tx.Insights.SaveProgress(ctx, active); err != nil {
			return fmt.Errorf("save insight progress: %w", err)
		}
		res.Insight = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EntryRecorded()
	invalidateDashboard(userID)
	e.log.Debug("entry recorded",
		zap.Uint("habit_id", habitID),
		zap.Uint("entry_id", res.Entry.ID),
		zap.Float64("value", in.Value),
		zap.Bool("goal_reached", crossed),
	)

	if crossed {
		e.replace(ctx, userID, habitID, &res.InsightOutcome)
	}
	return res, nil
}

// EditEntries rewrites existing entries of a habit, then recomputes the active insight's
// progress from the entries attributed to it and applies the goal-crossing rule.
func (e *Evaluator) EditEntries(ctx context.Context, userID, habitID uint, edits []EntryEdit) (*EditResult, error) {
	if err := validateEdits(edits); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(habitID)
	defer unlock()

	now := e.now()
	res := &EditResult{}
	var crossed bool
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		habit, err := tx.LockHabit(ctx, userID, habitID)
		if err != nil {
			return err
		}

		storeEdits := make([]store.EntryEdit, len(edits))
		for i, ed := range edits {
			storeEdits[i] = store.EntryEdit{ID: ed.ID, Value: ed.Value, Date: ed.Date}
		}
		if err := tx.Entries.Apply(ctx, habit.ID, storeEdits); err != nil {
			return fmt.Errorf("apply entry edits: %w", err)
		}

		entries, err := tx.Entries.List(ctx, habit.ID)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		res.Entries = entries

		active, err := tx.Insights.Active(ctx, habit.ID)
		if errors.Is(err, store.ErrNotFound) {
			res.InsightPending = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("load active insight: %w", err)
		}

		insights, err := tx.Insights.ListForHabit(ctx, habit.ID)
		if err != nil {
			return fmt.Errorf("list insights: %w", err)
		}
		total, _ := models.TotalFor(models.PartitionEntries(insights, entries), active.ID)
		active.Current = total
		crossed = e.advance(active, now)
		if err := tx.Insights.SaveProgress(ctx, active); err != nil {
			return fmt.Errorf("save insight progress: %w", err)
		}
		res.Insight = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateDashboard(userID)
	e.log.Info("entries edited",
		zap.Uint("habit_id", habitID),
		zap.Int("edits", len(edits)),
		zap.Bool("goal_reached", crossed),
	)

	if crossed {
		e.replace(ctx, userID, habitID, &res.InsightOutcome)
	}
	return res, nil
}

// activeOrSeed returns the habit's active insight. A habit without any insight gets a seed
// insight; a habit whose latest insight is completed without a replacement yields nil.
func (e *Evaluator) activeOrSeed(ctx context.Context, tx *store.Store, habit *models.Habit, now time.Time) (*models.Insight, error) {
	active, err := tx.Insights.Active(ctx, habit.ID)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load active insight: %w", err)
	}

	n, err := tx.Insights.CountForHabit(ctx, habit.ID)
	if err != nil {
		return nil, fmt.Errorf("count insights: %w", err)
	}
	if n > 0 {
		e.log.Warn("habit has no active insight, progress not tracked until regenerated", zap.Uint("habit_id", habit.ID))
		return nil, nil
	}
	e.log.Warn("habit had no insight, seeding one", zap.Uint("habit_id", habit.ID))
	// dated before the entry that triggered it so the entry falls into its partition
	return e.seedInsight(ctx, tx, habit, now.Add(-time.Millisecond))
}

// advance completes the insight if its progress reached the goal and reports whether it did.
func (e *Evaluator) advance(insight *models.Insight, now time.Time) bool {
	if insight.Completed || !insight.Reached(insight.Current) {
		return false
	}
	insight.Complete(now)
	return true
}

// replace generates the successor of a just-completed insight. The caller holds the habit lock.
func (e *Evaluator) replace(ctx context.Context, userID, habitID uint, out *InsightOutcome) {
	out.GoalReached = true
	metrics.GoalCrossed()

	ctx, cancel := e.detach(ctx)
	defer cancel()

	habit, err := e.store.Habits.Get(ctx, userID, habitID)
	if err == nil {
		var next *models.Insight
		next, err = e.gen.Generate(ctx, habit)
		if err == nil {
			out.NewInsight = next
			invalidateDashboard(userID)
			return
		}
	}
	e.log.Warn("insight replacement failed, habit left without active insight",
		zap.Uint("habit_id", habitID),
		zap.Error(err),
	)
	out.InsightPending = true
	out.GenerationError = err.Error()
}

func validateEntryValue(field string, v float64, allowZero bool) error {
	ve := &ValidationError{}
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		ve.Add(field, "must be a finite number")
	case v < 0 || (v == 0 && !allowZero):
		if allowZero {
			ve.Add(field, "must not be negative")
		} else {
			ve.Add(field, "must be greater than 0")
		}
	}
	return ve.Err()
}

func validateEdits(edits []EntryEdit) error {
	ve := &ValidationError{}
	if len(edits) == 0 {
		ve.Add("entries", "at least one entry is required")
	}
	seen := make(map[uint]struct{}, len(edits))
	for i, ed := range edits {
		field := fmt.Sprintf("entries[%d]", i)
		if ed.ID == 0 {
			ve.Add(field+".id", "is required")
		} else if _, dup := seen[ed.ID]; dup {
			ve.Add(field+".id", "is listed twice")
		}
		seen[ed.ID] = struct{}{}
		var fe *ValidationError
		if errors.As(validateEntryValue(field+".value", ed.Value, true), &fe) {
			ve.Errors = append(ve.Errors, fe.Errors...)
		}
		if ed.Date != nil && ed.Date.IsZero() {
			ve.Add(field+".date", "must be a valid timestamp")
		}
	}
	return ve.Err()
}
