package models

import "time"

// HabitKind is one of the fixed habit types a user can track.
type HabitKind string

const (
	HabitRecycling         HabitKind = "recycling"
	HabitComposting        HabitKind = "composting"
	HabitEnergyUsage       HabitKind = "energyUsage"
	HabitWaterConservation HabitKind = "waterConservation"
	HabitReusableBags      HabitKind = "reusableBags"
)

// GoalDirection is the qualitative direction a user wants a habit to move in.
type GoalDirection string

const (
	GoalIncrease GoalDirection = "increase"
	GoalMaintain GoalDirection = "maintain"
	GoalReduce   GoalDirection = "reduce"
)

// Valid reports whether g is a known goal direction.
func (g GoalDirection) Valid() bool {
	switch g {
	case GoalIncrease, GoalMaintain, GoalReduce:
		return true
	}
	return false
}

// Habit is a tracked behavior owned by one user. A user holds at most one habit per kind.
type Habit struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UserID    uint          `gorm:"not null;uniqueIndex:idx_habits_user_name,priority:1" json:"user_id"`
	HabitName HabitKind     `gorm:"size:32;not null;uniqueIndex:idx_habits_user_name,priority:2" json:"habit_name"`
	HabitGoal GoalDirection `gorm:"size:16;not null" json:"habit_goal"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Entries   []Entry       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"entries"`
}

// Unit returns the measurement unit of the habit's kind.
func (h Habit) Unit() string {
	return UnitFor(h.HabitName)
}

// TotalValue sums the value of every entry.
func (h Habit) TotalValue() float64 {
	var total float64
	for _, e := range h.Entries {
		total += e.Value
	}
	return total
}
