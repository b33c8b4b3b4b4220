// Package store persists habits, entries and insights through gorm.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/fallenleaves/models"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the habit, entry and insight stores over one connection or transaction.
type Store struct {
	db       *gorm.DB
	Habits   *HabitStore
	Entries  *EntryStore
	Insights *InsightStore
}

// New builds a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Habits:   &HabitStore{db: db},
		Entries:  &EntryStore{db: db},
		Insights: &InsightStore{db: db},
	}
}

// Models lists every model that must be migrated for the stores to work.
func Models() []interface{} {
	return []interface{}{&models.User{}, &models.Habit{}, &models.Entry{}, &models.Insight{}}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with stores bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// LockHabit loads a habit owned by userID and holds a row lock on it until the
// surrounding transaction ends. Drivers without row locks (SQLite) skip the clause.
func (s *Store) LockHabit(ctx context.Context, userID, habitID uint) (*models.Habit, error) {
	var habit models.Habit
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", habitID, userID).
		First(&habit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &habit, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	// MySQL 1062 / SQLite constraint text
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
