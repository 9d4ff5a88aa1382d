package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// Side is the team an operator slot belongs to
type Side string

const (
	SideDefender Side = "defender"
	SideAttacker Side = "attacker"
)

// Battleplan is the tactical drawing document being edited in a room
type Battleplan struct {
	ID          string            `json:"id" gorm:"type:char(27);primaryKey"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	Description string            `json:"description" gorm:"type:text"`
	OwnerID     string            `json:"ownerId" gorm:"type:varchar(64);index"`
	MapID       string            `json:"mapId" gorm:"type:varchar(64)"`
	Floors      []BattleplanFloor `json:"floors" gorm:"foreignKey:BattleplanID"`
	Slots       []OperatorSlot    `json:"operatorSlots" gorm:"foreignKey:BattleplanID"`
	CreatedAt   time.Time         `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Battleplan) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ksuid.New().String()
	}
	return nil
}

// FirstFloorID returns the lowest floor of the battleplan, or "" if it has none
func (b *Battleplan) FirstFloorID() string {
	if b == nil || len(b.Floors) == 0 {
		return ""
	}
	first := b.Floors[0]
	for _, f := range b.Floors[1:] {
		if f.Number < first.Number {
			first = f
		}
	}
	return first.ID
}

// BattleplanFloor is one level of the map that draws are scoped to
type BattleplanFloor struct {
	ID           string `json:"id" gorm:"type:char(27);primaryKey"`
	BattleplanID string `json:"battleplanId" gorm:"type:char(27);not null;index"`
	Number       int    `json:"number" gorm:"not null"`
	Name         string `json:"name" gorm:"type:text"`
}

func (f *BattleplanFloor) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = ksuid.New().String()
	}
	return nil
}

// Operator is a selectable character for a loadout slot
type Operator struct {
	ID   string `json:"id" gorm:"type:char(27);primaryKey"`
	Name string `json:"name" gorm:"type:text;not null"`
	Icon string `json:"icon" gorm:"type:text"`
	Side Side   `json:"side" gorm:"type:varchar(16);not null"`
}

func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = ksuid.New().String()
	}
	return nil
}

// OperatorSlot is a fixed loadout position on a battleplan.
// OperatorID is nil when the slot is empty.
type OperatorSlot struct {
	ID           string    `json:"id" gorm:"type:char(27);primaryKey"`
	BattleplanID string    `json:"battleplanId" gorm:"type:char(27);not null;uniqueIndex:idx_slot_number"`
	SlotNumber   int       `json:"slotNumber" gorm:"not null;uniqueIndex:idx_slot_number"`
	Side         Side      `json:"side" gorm:"type:varchar(16);not null;uniqueIndex:idx_slot_number"`
	OperatorID   *string   `json:"operatorId" gorm:"type:char(27)"`
	Operator     *Operator `json:"operator,omitempty" gorm:"foreignKey:OperatorID"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime"`
}

func (s *OperatorSlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = ksuid.New().String()
	}
	return nil
}
