package models

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// DrawType is the kind of vector shape a Draw renders as
type DrawType string

const (
	DrawPath      DrawType = "path"
	DrawLine      DrawType = "line"
	DrawRectangle DrawType = "rectangle"
	DrawText      DrawType = "text"
	DrawIcon      DrawType = "icon"
)

// Valid reports whether t is one of the known shape kinds
func (t DrawType) Valid() bool {
	switch t {
	case DrawPath, DrawLine, DrawRectangle, DrawText, DrawIcon:
		return true
	}
	return false
}

// Draw is one persisted shape on a battleplan floor.
// Rows are never hard-deleted: IsDeleted is a soft flag so history and undo keep working,
// which is also why this model does not use gorm.DeletedAt (lookups must still see the row).
type Draw struct {
	ID                string         `json:"id" gorm:"type:char(27);primaryKey"`
	BattleplanFloorID string         `json:"battleplanFloorId" gorm:"type:varchar(64);not null;index:idx_draw_floor"`
	UserID            *string        `json:"userId" gorm:"type:varchar(64)"`
	Type              DrawType       `json:"type" gorm:"type:varchar(16);not null"`
	OriginX           float64        `json:"originX" gorm:"not null"`
	OriginY           float64        `json:"originY" gorm:"not null"`
	DestinationX      *float64       `json:"destinationX,omitempty"`
	DestinationY      *float64       `json:"destinationY,omitempty"`
	Data              map[string]any `json:"data" gorm:"serializer:json"`
	IsDeleted         bool           `json:"isDeleted" gorm:"not null;default:false;index:idx_draw_floor"`
	CreatedAt         time.Time      `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate hook generates KSUID before inserting
func (d *Draw) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = ksuid.New().String()
	}
	return nil
}

// DrawCreate is one item of a draw:create batch as submitted by a client
type DrawCreate struct {
	Type         DrawType       `json:"type"`
	OriginX      float64        `json:"originX"`
	OriginY      float64        `json:"originY"`
	DestinationX *float64       `json:"destinationX,omitempty"`
	DestinationY *float64       `json:"destinationY,omitempty"`
	Data         map[string]any `json:"data"`
}

// Validate checks the fields the database cannot
func (c DrawCreate) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown draw type %q", c.Type)
	}
	return nil
}

// ToDraw builds the row to insert for a floor and an author
func (c DrawCreate) ToDraw(floorID, userID string) *Draw {
	d := &Draw{
		BattleplanFloorID: floorID,
		Type:              c.Type,
		OriginX:           c.OriginX,
		OriginY:           c.OriginY,
		DestinationX:      c.DestinationX,
		DestinationY:      c.DestinationY,
		Data:              c.Data,
	}
	if userID != "" {
		d.UserID = &userID
	}
	return d
}

// DrawPatch is a merge-patch over the mutable fields of a Draw.
// Nil fields are left untouched; Data replaces the payload wholesale.
type DrawPatch struct {
	OriginX      *float64       `json:"originX,omitempty"`
	OriginY      *float64       `json:"originY,omitempty"`
	DestinationX *float64       `json:"destinationX,omitempty"`
	DestinationY *float64       `json:"destinationY,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Empty reports whether the patch would change nothing
func (p DrawPatch) Empty() bool {
	return p.OriginX == nil && p.OriginY == nil &&
		p.DestinationX == nil && p.DestinationY == nil &&
		p.Data == nil
}
