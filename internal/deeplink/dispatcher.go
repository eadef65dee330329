package deeplink

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/yourusername/sling-api/internal/domain/entity"
	"github.com/yourusername/sling-api/internal/domain/repository"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// Outcome kinds emitted by the dispatcher.
const (
	OutcomeShowBet       = "show_bet"
	OutcomeShowCommunity = "show_community"
	OutcomeNotFound      = "not_found"
)

// Outcome is the dispatcher's resolution of one link: a navigation intent
// carrying the entity, or a not-found marker. Never persisted.
type Outcome struct {
	Kind       string
	Bet        *entity.Bet
	Community  *entity.Community
	EntityType string
	EntityID   string
}

// Dispatcher consumes the channel once application data is ready and
// resolves the pending link. Bets are fetched remotely by public id;
// communities are looked up only in the caller's already-loaded list,
// since membership is required for display.
type Dispatcher struct {
	channel *Channel
	betRepo repository.BetRepository
}

// NewDispatcher creates a dispatcher over the shared channel.
func NewDispatcher(channel *Channel, betRepo repository.BetRepository) (*Dispatcher, error) {
	if channel == nil {
		return nil, fmt.Errorf("deep link channel is required")
	}
	if betRepo == nil {
		return nil, fmt.Errorf("bet repository is required")
	}
	return &Dispatcher{channel: channel, betRepo: betRepo}, nil
}

// Dispatch resolves the pending link, if any, against the bet store and
// the given community list. The channel is cleared after exactly one
// resolution attempt whatever the outcome; a community link arriving
// before the list has loaded resolves as not-found and is not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, loadedCommunities []entity.Community) (*Outcome, error) {
	link := d.channel.Peek()
	if link == nil {
		return nil, nil
	}
	defer d.channel.Clear()

	switch link.EntityType {
	case EntityTypeBet:
		return d.resolveBet(ctx, link)
	case EntityTypeCommunity:
		return d.resolveCommunity(link, loadedCommunities), nil
	default:
		// The router only publishes the closed type set.
		return notFound(link), nil
	}
}

func (d *Dispatcher) resolveBet(ctx context.Context, link *ParsedDeepLink) (*Outcome, error) {
	bet, err := d.betRepo.GetByPublicID(ctx, link.EntityID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return notFound(link), nil
		}
		log.Printf("[DeepLink] Failed to fetch bet %s: %v", link.EntityID, err)
		return notFound(link), err
	}
	return &Outcome{Kind: OutcomeShowBet, Bet: bet, EntityType: link.EntityType, EntityID: link.EntityID}, nil
}

func (d *Dispatcher) resolveCommunity(link *ParsedDeepLink, loaded []entity.Community) *Outcome {
	for i := range loaded {
		if loaded[i].PublicID == link.EntityID {
			return &Outcome{
				Kind:       OutcomeShowCommunity,
				Community:  &loaded[i],
				EntityType: link.EntityType,
				EntityID:   link.EntityID,
			}
		}
	}
	return notFound(link)
}

func notFound(link *ParsedDeepLink) *Outcome {
	return &Outcome{Kind: OutcomeNotFound, EntityType: link.EntityType, EntityID: link.EntityID}
}
