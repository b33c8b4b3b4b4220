package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/fallenleaves/models"
)

// EntryStore persists the append-only entry log of each habit.
type EntryStore struct {
	db *gorm.DB
}

// EntryEdit rewrites one existing entry. A nil Date keeps the original timestamp.
type EntryEdit struct {
	ID    uint
	Value float64
	Date  *time.Time
}

// Append adds an entry to the end of a habit's log.
func (s *EntryStore) Append(ctx context.Context, entry *models.Entry) error {
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

// List returns the entries of a habit ordered by date.
func (s *EntryStore) List(ctx context.Context, habitID uint) ([]models.Entry, error) {
	var entries []models.Entry
	err := s.db.WithContext(ctx).
		Where("habit_id = ?", habitID).
		Order("date ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// Apply rewrites entries of a habit. Every edit must reference an entry of that habit.
func (s *EntryStore) Apply(ctx context.Context, habitID uint, edits []EntryEdit) error {
	if len(edits) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(edits))
	seen := make(map[uint]struct{}, len(edits))
	for _, edit := range edits {
		if _, dup := seen[edit.ID]; !dup {
			seen[edit.ID] = struct{}{}
			ids = append(ids, edit.ID)
		}
	}
	var owned int64
	if err := s.db.WithContext(ctx).Model(&models.Entry{}).
		Where("habit_id = ? AND id IN ?", habitID, ids).
		Count(&owned).Error; err != nil {
		return err
	}
	if owned != int64(len(ids)) {
		return ErrNotFound
	}

	for _, edit := range edits {
		updates := map[string]interface{}{"value": edit.Value}
		if edit.Date != nil {
			updates["date"] = models.NormalizeTime(*edit.Date)
		}
		err := s.db.WithContext(ctx).Model(&models.Entry{}).
			Where("id = ? AND habit_id = ?", edit.ID, habitID).
			Updates(updates).Error
		if err != nil {
			return err
		}
	}
	return nil
}
