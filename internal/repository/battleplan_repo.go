package repository

import (
	"context"
	"errors"
	"fmt"

	"stratboard/internal/models"

	"gorm.io/gorm"
)

// BattleplanRepositoryImpl reads battleplans for room context switches
type BattleplanRepositoryImpl struct {
	db *gorm.DB
}

// NewBattleplanRepository creates a new battleplan repository
func NewBattleplanRepository(db *gorm.DB) *BattleplanRepositoryImpl {
	return &BattleplanRepositoryImpl{db: db}
}

// GetBattleplan returns a battleplan with its floors (ordered by number) and slots
func (r *BattleplanRepositoryImpl) GetBattleplan(ctx context.Context, id string) (*models.Battleplan, error) {
	var bp models.Battleplan

	err := r.db.WithContext(ctx).
		Preload("Floors", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).
		Preload("Slots", func(db *gorm.DB) *gorm.DB {
			return db.Order("side ASC, slot_number ASC")
		}).
		First(&bp, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("battleplan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get battleplan: %w", err)
	}

	return &bp, nil
}
