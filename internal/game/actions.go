// internal/game/actions.go
package game

import (
	"github.com/google/uuid"
)

// ActionType discriminates the Action union.
type ActionType string

const (
	ActionGameStarted   ActionType = "game-started"
	ActionDealCards     ActionType = "deal-cards"
	ActionDeckReshuffle ActionType = "deck-reshuffle"
	ActionSwapCards     ActionType = "swap-cards"
	ActionDealerDraw    ActionType = "dealer-draw"
	ActionKung          ActionType = "kung"
	ActionStick         ActionType = "stick"
	ActionRevealCards   ActionType = "reveal-cards"
	ActionTallying      ActionType = "tallying"
	ActionEndRound      ActionType = "end-round"
	ActionPlayerJoined  ActionType = "player-joined"
	ActionPlayerLeft    ActionType = "player-left"

	// ActionReceiveCard is never appended to the shared log; it is delivered
	// privately to a single player after commit.
	ActionReceiveCard ActionType = "receive-card"
)

// Action is an immutable log record. Exactly one payload field matching Type
// is non-nil; consumers switch on Type and read that field. OrderKey is a
// per-game monotonic sequence assigned by the store at commit time, strictly
// increasing across every action ever committed for the game.
type Action struct {
	ID       uuid.UUID  `json:"id"`
	OrderKey int64      `json:"orderKey"`
	Type     ActionType `json:"type"`
	Player   uuid.UUID  `json:"player"`

	GameStarted  *GameStartedPayload  `json:"gameStarted,omitempty"`
	DealCards    *DealCardsPayload    `json:"dealCards,omitempty"`
	Reshuffle    *ReshufflePayload    `json:"reshuffle,omitempty"`
	Swap         *SwapPayload         `json:"swap,omitempty"`
	DealerDraw   *DealerDrawPayload   `json:"dealerDraw,omitempty"`
	Kung         *KungPayload         `json:"kung,omitempty"`
	Stick        *StickPayload        `json:"stick,omitempty"`
	Reveal       *RevealPayload       `json:"reveal,omitempty"`
	Tally        *TallyPayload        `json:"tally,omitempty"`
	EndRound     *EndRoundPayload     `json:"endRound,omitempty"`
	PlayerJoined *PlayerJoinedPayload `json:"playerJoined,omitempty"`
	PlayerLeft   *PlayerLeftPayload   `json:"playerLeft,omitempty"`
	ReceiveCard  *ReceiveCardPayload  `json:"receiveCard,omitempty"`
}

// GameStartedPayload records the initial dealer.
type GameStartedPayload struct {
	Dealer uuid.UUID `json:"dealer"`
}

// DealCardsPayload lists the players dealt to, in dealing order. A single
// DealCards operation may emit several of these when a reshuffle splits the
// deal.
type DealCardsPayload struct {
	Players []uuid.UUID `json:"players"`
}

// ReshufflePayload records the trash pile being shuffled into a fresh deck.
type ReshufflePayload struct {
	CardsShuffled int `json:"cardsShuffled"`
}

// SwapPayload records a completed hand swap with the target player.
type SwapPayload struct {
	Target uuid.UUID `json:"target"`
}

// DealerDrawPayload records the dealer trading their card for the deck top.
// PreviousCard is the card that went to trash.
type DealerDrawPayload struct {
	PreviousCard Card `json:"previousCard"`
}

// KungPayload records a swap attempt blocked by a King.
type KungPayload struct {
	KingHolder uuid.UUID `json:"kingHolder"`
	Card       Card      `json:"card"`
}

// StickPayload records a player keeping their card.
type StickPayload struct {
	IsDealer bool `json:"isDealer"`
}

// RevealPayload exposes every living player's card for the tally.
type RevealPayload struct {
	Cards map[uuid.UUID]Card `json:"cards"`
}

// TallyPayload lists the players who lost a life this round.
type TallyPayload struct {
	PlayersLost []uuid.UUID `json:"playersLost"`
	LowestRank  int         `json:"lowestRank"`
}

// EndRoundPayload records the dealer rotation.
type EndRoundPayload struct {
	NewDealer uuid.UUID `json:"newDealer"`
}

// PlayerJoinedPayload records a player entering the lobby.
type PlayerJoinedPayload struct {
	Name string `json:"name"`
}

// PlayerLeftPayload records a player leaving.
type PlayerLeftPayload struct {
	Name string `json:"name"`
}

// ReceiveCardPayload privately tells one player the card now in their hand.
type ReceiveCardPayload struct {
	Card Card `json:"card"`
}

func newAction(typ ActionType, player uuid.UUID) Action {
	return Action{ID: uuid.New(), Type: typ, Player: player}
}

func dealCardsAction(dealer uuid.UUID, players []uuid.UUID) Action {
	a := newAction(ActionDealCards, dealer)
	a.DealCards = &DealCardsPayload{Players: players}
	return a
}

func reshuffleAction(player uuid.UUID, cardsShuffled int) Action {
	a := newAction(ActionDeckReshuffle, player)
	a.Reshuffle = &ReshufflePayload{CardsShuffled: cardsShuffled}
	return a
}

func swapAction(player, target uuid.UUID) Action {
	a := newAction(ActionSwapCards, player)
	a.Swap = &SwapPayload{Target: target}
	return a
}

func dealerDrawAction(dealer uuid.UUID, previous Card) Action {
	a := newAction(ActionDealerDraw, dealer)
	a.DealerDraw = &DealerDrawPayload{PreviousCard: previous}
	return a
}

func kungAction(player, kingHolder uuid.UUID, card Card) Action {
	a := newAction(ActionKung, player)
	a.Kung = &KungPayload{KingHolder: kingHolder, Card: card}
	return a
}

func stickAction(player uuid.UUID, isDealer bool) Action {
	a := newAction(ActionStick, player)
	a.Stick = &StickPayload{IsDealer: isDealer}
	return a
}

func revealAction(dealer uuid.UUID, cards map[uuid.UUID]Card) Action {
	a := newAction(ActionRevealCards, dealer)
	a.Reveal = &RevealPayload{Cards: cards}
	return a
}

func tallyAction(dealer uuid.UUID, lost []uuid.UUID, lowestRank int) Action {
	a := newAction(ActionTallying, dealer)
	a.Tally = &TallyPayload{PlayersLost: lost, LowestRank: lowestRank}
	return a
}

func endRoundAction(dealer, newDealer uuid.UUID) Action {
	a := newAction(ActionEndRound, dealer)
	a.EndRound = &EndRoundPayload{NewDealer: newDealer}
	return a
}

func gameStartedAction(host, dealer uuid.UUID) Action {
	a := newAction(ActionGameStarted, host)
	a.GameStarted = &GameStartedPayload{Dealer: dealer}
	return a
}

func playerJoinedAction(player uuid.UUID, name string) Action {
	a := newAction(ActionPlayerJoined, player)
	a.PlayerJoined = &PlayerJoinedPayload{Name: name}
	return a
}

func playerLeftAction(player uuid.UUID, name string) Action {
	a := newAction(ActionPlayerLeft, player)
	a.PlayerLeft = &PlayerLeftPayload{Name: name}
	return a
}

func receiveCardAction(player uuid.UUID, card Card) Action {
	a := newAction(ActionReceiveCard, player)
	a.ReceiveCard = &ReceiveCardPayload{Card: card}
	return a
}
