// internal/game/dealing.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DealCards deals one card to every player with lives remaining, starting
// with the player left of the dealer and ending with the dealer. When the
// deck runs out mid-deal the trash pile is shuffled into a fresh deck; the
// log records the players dealt before the reshuffle, the reshuffle itself,
// and the players dealt after it, in that order. The round moves to playing
// with the first-dealt player active.
//
// Only the dealer may deal, and only in pre-deal state. After commit every
// dealt player privately receives their card; that delivery is best-effort
// and never part of the transaction.
func (e *Engine) DealCards(ctx context.Context, gameID string, caller uuid.UUID) error {
	var dealt map[uuid.UUID]Card
	committed, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != StatusActive {
			return Errorf(KindFailedPrecondition, "game is not active")
		}
		if g.Dealer != caller {
			return Errorf(KindPermissionDenied, "only the dealer can deal cards")
		}
		if g.RoundState != RoundPreDeal {
			return Errorf(KindFailedPrecondition, "cards can only be dealt in pre-deal state")
		}
		state, err := tx.InternalState()
		if err != nil {
			return err
		}
		if g.playerIndex(g.Dealer) == -1 {
			return Errorf(KindInternal, "dealer %s is not in the player list", g.Dealer)
		}

		order := g.dealingOrder()
		if len(order) == 0 {
			return Errorf(KindFailedPrecondition, "no players with lives remaining")
		}

		deck := append([]Card(nil), state.Deck...)
		trash := append([]Card(nil), state.Trash...)
		dealt = make(map[uuid.UUID]Card, len(order))

		// boundary marks the start of the players covered by the next
		// deal-cards action; a mid-deal reshuffle advances it.
		boundary := 0
		for i, pid := range order {
			if len(deck) == 0 {
				if len(trash) == 0 {
					return Errorf(KindFailedPrecondition, "no cards left in deck or trash")
				}
				if i > boundary {
					tx.Append(dealCardsAction(caller, order[boundary:i]))
				}
				tx.Append(reshuffleAction(caller, len(trash)))
				deck = trash
				e.Shuffle(deck)
				trash = []Card{}
				boundary = i
			}
			card := deck[len(deck)-1]
			deck = deck[:len(deck)-1]
			dealt[pid] = card
			tx.SetHand(pid, card)
		}
		tx.Append(dealCardsAction(caller, order[boundary:]))

		g.RoundState = RoundPlaying
		g.ActivePlayer = order[0]
		tx.SetGame(g)
		tx.SetInternalState(&InternalState{Deck: deck, Trash: trash})
		return nil
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"game_id": gameID,
		"dealer":  caller,
		"dealt":   len(dealt),
	}).Info("cards dealt")

	e.notifier.PublishActions(ctx, gameID, committed)
	for pid, card := range dealt {
		e.notifier.NotifyPlayer(ctx, gameID, pid, receiveCardAction(pid, card))
	}
	return nil
}
