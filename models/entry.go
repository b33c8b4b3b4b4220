package models

import (
	"time"

	"gorm.io/gorm"
)

// Entry is one timestamped numeric observation recorded against a habit.
type Entry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	HabitID   uint      `gorm:"not null;index:idx_entries_habit_date,priority:1" json:"habit_id"`
	Date      time.Time `gorm:"not null;index:idx_entries_habit_date,priority:2" json:"date"`
	Value     float64   `gorm:"not null" json:"value"`
	Unit      string    `gorm:"size:16" json:"unit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps entries grouped with their habits.
func (Entry) TableName() string {
	return "habit_entries"
}

// BeforeSave stores every entry date in UTC so reads never depend on the driver's location.
func (e *Entry) BeforeSave(tx *gorm.DB) error {
	e.Date = NormalizeTime(e.Date)
	return nil
}

// NormalizeTime is the single conversion applied to timestamps at the store boundary:
// UTC, millisecond precision (MySQL DATETIME(3)). A zero time means now.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Millisecond)
}
