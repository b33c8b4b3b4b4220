package models

import (
	"math"
	"time"
)

// Insight is a goal/progress record attached to a habit.
//
// ActiveHabitID mirrors UserHabitID while the insight is active and is NULL once it is
// completed. The unique index on it lets the database reject a second active insight for
// the same habit; NULLs do not collide.
type Insight struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	UserHabitID   uint       `gorm:"not null;index:idx_insights_habit_added,priority:1" json:"user_habit_id"`
	ActiveHabitID *uint      `gorm:"uniqueIndex" json:"-"`
	InsightTitle  string     `gorm:"size:255;not null" json:"insight_title"`
	InsightText   string     `gorm:"type:text" json:"insight_text"`
	SuggestedGoal int        `gorm:"not null" json:"suggested_goal"`
	Current       float64    `gorm:"not null;default:0" json:"current"`
	DateAdded     time.Time  `gorm:"not null;index:idx_insights_habit_added,priority:2" json:"date_added"`
	Completed     bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewActiveInsight builds an active insight with zero progress for a habit.
func NewActiveInsight(userID, habitID uint, title, text string, goal int, now time.Time) *Insight {
	active := habitID
	return &Insight{
		UserID:        userID,
		UserHabitID:   habitID,
		ActiveHabitID: &active,
		InsightTitle:  title,
		InsightText:   text,
		SuggestedGoal: goal,
		DateAdded:     NormalizeTime(now),
	}
}

// Reached reports whether progress meets the target. The boundary is inclusive.
func (i *Insight) Reached(current float64) bool {
	return current >= float64(i.SuggestedGoal)
}

// Complete marks the insight completed. Completion is permanent.
func (i *Insight) Complete(at time.Time) {
	at = NormalizeTime(at)
	i.Completed = true
	i.CompletedAt = &at
	i.ActiveHabitID = nil
}

// Percent returns progress as a percentage of the goal, capped at 100.
func (i *Insight) Percent() float64 {
	if i.SuggestedGoal <= 0 {
		return 0
	}
	p := i.Current / float64(i.SuggestedGoal) * 100
	return math.Min(math.Round(p*100)/100, 100)
}
