package repository

import "gorm.io/gorm"

// Gateway bundles the repositories the collaboration engine writes through
type Gateway struct {
	*DrawRepositoryImpl
	*OperatorRepositoryImpl
	*BattleplanRepositoryImpl
}

// NewGateway creates all repositories over one database handle
func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{
		DrawRepositoryImpl:       NewDrawRepository(db),
		OperatorRepositoryImpl:   NewOperatorRepository(db),
		BattleplanRepositoryImpl: NewBattleplanRepository(db),
	}
}
