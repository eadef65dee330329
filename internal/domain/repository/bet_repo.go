package repository

import (
	"context"

	"github.com/yourusername/sling-api/internal/domain/entity"
)

// BetRepository is the remote entity store for bets. Deep links carry the
// bet's public id, so lookup by public id is the hot path.
type BetRepository interface {
	Create(bet *entity.Bet) error
	GetByID(id uint) (*entity.Bet, error)
	GetByPublicID(ctx context.Context, publicID string) (*entity.Bet, error)
	ListByCommunity(communityID uint, limit, offset int) ([]entity.Bet, error)
}
