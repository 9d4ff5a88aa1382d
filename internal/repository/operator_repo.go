package repository

import (
	"context"
	"errors"
	"fmt"

	"stratboard/internal/models"

	"gorm.io/gorm"
)

// OperatorRepositoryImpl handles operators and the loadout slots they are assigned to
type OperatorRepositoryImpl struct {
	db *gorm.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) *OperatorRepositoryImpl {
	return &OperatorRepositoryImpl{db: db}
}

// GetOperator returns an operator by id
func (r *OperatorRepositoryImpl) GetOperator(ctx context.Context, id string) (*models.Operator, error) {
	var op models.Operator

	err := r.db.WithContext(ctx).First(&op, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("operator %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	return &op, nil
}

// UpdateOperatorSlot sets or clears the operator of a slot and returns the committed row.
// Concurrent writers are last-write-wins.
func (r *OperatorRepositoryImpl) UpdateOperatorSlot(ctx context.Context, slotID string, operatorID *string) (*models.OperatorSlot, error) {
	var slot models.OperatorSlot

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OperatorSlot{}).
			Where("id = ?", slotID).
			Update("operator_id", operatorID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("operator slot %s: %w", slotID, ErrNotFound)
		}
		return tx.First(&slot, "id = ?", slotID).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update operator slot: %w", err)
	}

	return &slot, nil
}

// EnsureOperatorSlots creates any missing slots 1..perSide for both sides of a battleplan
// and returns the full, ordered slot list.
func (r *OperatorRepositoryImpl) EnsureOperatorSlots(ctx context.Context, battleplanID string, perSide int) ([]models.OperatorSlot, error) {
	var slots []models.OperatorSlot

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.OperatorSlot
		if err := tx.Where("battleplan_id = ?", battleplanID).Find(&existing).Error; err != nil {
			return err
		}

		have := make(map[models.Side]map[int]bool, 2)
		for _, s := range existing {
			if have[s.Side] == nil {
				have[s.Side] = make(map[int]bool)
			}
			have[s.Side][s.SlotNumber] = true
		}

		for _, side := range []models.Side{models.SideDefender, models.SideAttacker} {
			for n := 1; n <= perSide; n++ {
				if have[side][n] {
					continue
				}
				slot := &models.OperatorSlot{BattleplanID: battleplanID, SlotNumber: n, Side: side}
				if err := tx.Create(slot).Error; err != nil {
					return err
				}
			}
		}

		return tx.Where("battleplan_id = ?", battleplanID).
			Order("side ASC, slot_number ASC").
			Find(&slots).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure operator slots: %w", err)
	}

	return slots, nil
}
