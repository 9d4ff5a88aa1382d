package collaboration

import (
	"context"

	"stratboard/internal/models"
)

// PersistenceGateway is what the router needs from durable storage.
// Draw writes are scoped to one battleplan: rows on floors of any other
// battleplan are treated as missing. It is satisfied by *repository.Gateway.
type PersistenceGateway interface {
	InsertDraws(ctx context.Context, battleplanID string, draws []*models.Draw) error
	SoftDeleteDraws(ctx context.Context, battleplanID string, ids []string) error
	PatchDraw(ctx context.Context, battleplanID, id string, patch models.DrawPatch) (*models.Draw, error)
	UpdateOperatorSlot(ctx context.Context, slotID string, operatorID *string) (*models.OperatorSlot, error)
	GetOperator(ctx context.Context, id string) (*models.Operator, error)
	GetBattleplan(ctx context.Context, id string) (*models.Battleplan, error)
}
