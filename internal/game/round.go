// internal/game/round.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EndRound resolves a tallying round. If at most one player still has lives
// the game ends: the survivor wins, or on a simultaneous last-life loss
// every player still holding a card wins. Otherwise all dealt cards move to
// trash, hands clear, the deal rotates to the next player with lives left of
// the current dealer, and the next round opens in pre-deal.
//
// Only the current dealer may end the round, and only while they are also
// the active player.
func (e *Engine) EndRound(ctx context.Context, gameID string, caller uuid.UUID) error {
	ended := false
	committed, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != StatusActive {
			return Errorf(KindFailedPrecondition, "game is not active")
		}
		if g.Dealer != caller {
			return Errorf(KindPermissionDenied, "only the dealer can end the round")
		}
		if g.ActivePlayer != caller {
			return Errorf(KindPermissionDenied, "only the active player can end the round")
		}
		if g.RoundState != RoundTallying {
			return Errorf(KindFailedPrecondition, "round can only be ended in tallying state")
		}
		hands, err := tx.Hands()
		if err != nil {
			return err
		}

		alive := g.AlivePlayers()
		if len(alive) <= 1 {
			winners := alive
			if len(winners) == 0 {
				// Simultaneous last-life loss: everyone still holding a
				// card shares the win.
				for _, pid := range g.Players {
					if hands[pid] != NoCard {
						winners = append(winners, pid)
					}
				}
			}
			g.Status = StatusEnded
			g.Winners = winners
			g.Dealer = uuid.Nil
			g.ActivePlayer = uuid.Nil
			g.RoundState = ""
			tx.SetGame(g)
			ended = true
			return nil
		}

		state, err := tx.InternalState()
		if err != nil {
			return err
		}
		trash := append([]Card(nil), state.Trash...)
		for _, pid := range g.Players {
			if hands[pid] != NoCard {
				trash = append(trash, hands[pid])
			}
			tx.SetHand(pid, NoCard)
		}
		tx.SetInternalState(&InternalState{Deck: state.Deck, Trash: trash})

		newDealer, ok := g.nextAlive(g.Dealer)
		if !ok {
			return Errorf(KindFailedPrecondition, "no players with lives remaining for a new dealer")
		}
		g.Dealer = newDealer
		g.ActivePlayer = newDealer
		g.RoundState = RoundPreDeal
		g.Round++
		tx.SetGame(g)
		tx.Append(endRoundAction(caller, newDealer))
		return nil
	})
	if err != nil {
		return err
	}
	if ended {
		e.log.WithFields(logrus.Fields{"game_id": gameID}).Info("game ended")
	}
	e.notifier.PublishActions(ctx, gameID, committed)
	return nil
}
