// internal/game/turn.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Stick keeps the caller's card. A non-dealer passes the turn to the next
// player with lives remaining; the dealer sticking closes the round: hands
// are revealed, the lowest card(s) tallied, and the round moves to tallying,
// all in the same transaction.
func (e *Engine) Stick(ctx context.Context, gameID string, caller uuid.UUID) error {
	committed, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := e.requirePlayingTurn(tx, caller)
		if err != nil {
			return err
		}

		if g.Dealer == caller {
			tx.Append(stickAction(caller, true))
			g.RoundState = RoundTallying
			if err := e.revealAndTally(tx, g, caller, nil); err != nil {
				return err
			}
			tx.SetGame(g)
			return nil
		}

		next, ok := g.nextAlive(caller)
		if !ok {
			return Errorf(KindFailedPrecondition, "no players with lives remaining to pass the turn to")
		}
		g.ActivePlayer = next
		tx.SetGame(g)
		tx.Append(stickAction(caller, false))
		return nil
	})
	if err != nil {
		return err
	}
	e.notifier.PublishActions(ctx, gameID, committed)
	return nil
}

// SwapOrDraw is the caller's other move. A non-dealer swaps hands with the
// next player with lives remaining, unless that player holds a King: then no
// cards move, the turn still passes, and a kung is logged. The dealer
// instead trades their card for the top of the deck (reshuffling trash into
// the deck first if needed) and closes the round with a reveal and tally.
//
// A caller holding a King cannot play this move at all; Kings stick.
func (e *Engine) SwapOrDraw(ctx context.Context, gameID string, caller uuid.UUID) error {
	received := make(map[uuid.UUID]Card)
	committed, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := e.requirePlayingTurn(tx, caller)
		if err != nil {
			return err
		}
		hands, err := tx.Hands()
		if err != nil {
			return err
		}
		card := hands[caller]
		if card == NoCard {
			return Errorf(KindFailedPrecondition, "you have no card to play")
		}
		if card.IsKing() {
			return Errorf(KindFailedPrecondition, "a King cannot be swapped or traded")
		}

		if g.Dealer == caller {
			return e.dealerDraw(tx, g, caller, card, hands, received)
		}

		target, ok := g.nextAlive(caller)
		if !ok {
			return Errorf(KindFailedPrecondition, "no players with lives remaining to swap with")
		}
		targetCard := hands[target]
		if targetCard == NoCard {
			return Errorf(KindFailedPrecondition, "player %s has no card to swap", target)
		}

		if targetCard.IsKing() {
			// Kung: the King blocks the swap but the turn still passes.
			g.ActivePlayer = target
			tx.SetGame(g)
			tx.Append(kungAction(caller, target, targetCard))
			return nil
		}

		tx.SetHand(caller, targetCard)
		tx.SetHand(target, card)
		received[caller] = targetCard
		received[target] = card
		g.ActivePlayer = target
		tx.SetGame(g)
		tx.Append(swapAction(caller, target))
		return nil
	})
	if err != nil {
		return err
	}
	e.notifier.PublishActions(ctx, gameID, committed)
	for pid, card := range received {
		e.notifier.NotifyPlayer(ctx, gameID, pid, receiveCardAction(pid, card))
	}
	return nil
}

// dealerDraw trades the dealer's card for the deck top and closes the round.
// The staged hand change is passed to the tally through overrides so the
// reveal shows the drawn card, not the discarded one.
func (e *Engine) dealerDraw(tx Txn, g *Game, dealer uuid.UUID, previous Card, hands map[uuid.UUID]Card, received map[uuid.UUID]Card) error {
	state, err := tx.InternalState()
	if err != nil {
		return err
	}
	deck := append([]Card(nil), state.Deck...)
	trash := append([]Card(nil), state.Trash...)
	if len(deck) == 0 {
		if len(trash) == 0 {
			return Errorf(KindFailedPrecondition, "no cards left in deck or trash")
		}
		tx.Append(reshuffleAction(dealer, len(trash)))
		deck = trash
		e.Shuffle(deck)
		trash = []Card{}
	}
	drawn := deck[len(deck)-1]
	deck = deck[:len(deck)-1]
	trash = append(trash, previous)

	tx.SetHand(dealer, drawn)
	received[dealer] = drawn
	tx.SetInternalState(&InternalState{Deck: deck, Trash: trash})
	tx.Append(dealerDrawAction(dealer, previous))

	g.RoundState = RoundTallying
	overrides := map[uuid.UUID]Card{dealer: drawn}
	if err := e.revealAndTally(tx, g, dealer, overrides); err != nil {
		return err
	}
	tx.SetGame(g)
	return nil
}

// revealAndTally reveals every living player's hand, finds the lowest rank,
// and decrements one life from each player tied for it (floored at zero).
// The reveal action always immediately precedes the tally action. overrides
// substitutes hands staged earlier in this transaction.
func (e *Engine) revealAndTally(tx Txn, g *Game, dealer uuid.UUID, overrides map[uuid.UUID]Card) error {
	hands, err := tx.Hands()
	if err != nil {
		return err
	}
	revealed := make(map[uuid.UUID]Card)
	for _, pid := range g.Players {
		if g.Lives[pid] <= 0 {
			continue
		}
		card := hands[pid]
		if c, ok := overrides[pid]; ok {
			card = c
		}
		if card != NoCard {
			revealed[pid] = card
		}
	}
	if len(revealed) == 0 {
		return Errorf(KindFailedPrecondition, "no hands to reveal")
	}

	tx.Append(revealAction(dealer, revealed))

	losers := lowestHolders(revealed)
	lowest := revealed[losers[0]].Value()
	for _, pid := range losers {
		if g.Lives[pid] > 0 {
			g.Lives[pid]--
		}
	}
	tx.Append(tallyAction(dealer, losers, lowest))

	e.log.WithFields(logrus.Fields{
		"game_id": g.ID,
		"losers":  len(losers),
		"rank":    lowest,
	}).Debug("round tallied")
	return nil
}

// requirePlayingTurn checks the shared turn preconditions: active game,
// playing round state, caller is the active player.
func (e *Engine) requirePlayingTurn(tx Txn, caller uuid.UUID) (*Game, error) {
	g, err := tx.Game()
	if err != nil {
		return nil, err
	}
	if g.Status != StatusActive {
		return nil, Errorf(KindFailedPrecondition, "game is not active")
	}
	if g.RoundState != RoundPlaying {
		return nil, Errorf(KindFailedPrecondition, "round is not in playing state")
	}
	if g.ActivePlayer != caller {
		return nil, Errorf(KindPermissionDenied, "it is not your turn")
	}
	return g, nil
}
