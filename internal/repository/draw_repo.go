package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stratboard/internal/models"

	"gorm.io/gorm"
)

// DrawRepositoryImpl persists battleplan shapes
type DrawRepositoryImpl struct {
	db *gorm.DB
}

// NewDrawRepository creates a new draw repository
func NewDrawRepository(db *gorm.DB) *DrawRepositoryImpl {
	return &DrawRepositoryImpl{db: db}
}

// floorsOf selects the floor ids of a battleplan, for use as a subquery
func floorsOf(tx *gorm.DB, battleplanID string) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.BattleplanFloor{}).
		Select("id").
		Where("battleplan_id = ?", battleplanID)
}

// InsertDraws inserts a batch in submission order inside one transaction.
// Every draw must sit on a floor of battleplanID. IDs are assigned by the
// BeforeCreate hook and written back into the slice.
func (r *DrawRepositoryImpl) InsertDraws(ctx context.Context, battleplanID string, draws []*models.Draw) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		floors := make(map[string]bool)
		for _, d := range draws {
			floors[d.BattleplanFloorID] = true
		}
		ids := make([]string, 0, len(floors))
		for id := range floors {
			ids = append(ids, id)
		}

		var found int64
		if err := tx.Model(&models.BattleplanFloor{}).
			Where("battleplan_id = ? AND id IN ?", battleplanID, ids).
			Count(&found).Error; err != nil {
			return err
		}
		if int(found) != len(ids) {
			return fmt.Errorf("floor not in battleplan %s: %w", battleplanID, ErrNotFound)
		}

		for i, d := range draws {
			if err := tx.Create(d).Error; err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to insert draws: %w", err)
	}
	return nil
}

// GetDraw returns a draw by id, soft-deleted rows included
func (r *DrawRepositoryImpl) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	var draw models.Draw

	err := r.db.WithContext(ctx).First(&draw, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("draw %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw: %w", err)
	}

	return &draw, nil
}

// SoftDeleteDraws flags every listed draw of battleplanID as deleted and touches
// updated_at. Rows are kept. The batch is all-or-nothing: an id that is unknown or
// belongs to another battleplan rolls it back.
func (r *DrawRepositoryImpl) SoftDeleteDraws(ctx context.Context, battleplanID string, ids []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, id := range ids {
			result := tx.Model(&models.Draw{}).
				Where("id = ? AND battleplan_floor_id IN (?)", id, floorsOf(tx, battleplanID)).
				Updates(map[string]interface{}{
					"is_deleted": true,
					"updated_at": now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("draw %s: %w", id, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete draws: %w", err)
	}
	return nil
}

// PatchDraw applies a merge-patch to the mutable fields of a draw of battleplanID
func (r *DrawRepositoryImpl) PatchDraw(ctx context.Context, battleplanID, id string, patch models.DrawPatch) (*models.Draw, error) {
	var draw models.Draw

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("battleplan_floor_id IN (?)", floorsOf(tx, battleplanID)).
			First(&draw, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("draw %s: %w", id, ErrNotFound)
			}
			return err
		}

		// Select keeps zero values (e.g. originX = 0) in the update
		columns := []string{"updated_at"}
		if patch.OriginX != nil {
			draw.OriginX = *patch.OriginX
			columns = append(columns, "origin_x")
		}
		if patch.OriginY != nil {
			draw.OriginY = *patch.OriginY
			columns = append(columns, "origin_y")
		}
		if patch.DestinationX != nil {
			draw.DestinationX = patch.DestinationX
			columns = append(columns, "destination_x")
		}
		if patch.DestinationY != nil {
			draw.DestinationY = patch.DestinationY
			columns = append(columns, "destination_y")
		}
		if patch.Data != nil {
			draw.Data = patch.Data
			columns = append(columns, "data")
		}
		draw.UpdatedAt = time.Now()

		return tx.Model(&draw).Select(columns).Updates(&draw).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to patch draw: %w", err)
	}

	return &draw, nil
}
