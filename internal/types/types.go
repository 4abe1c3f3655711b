// Package types holds the wire shapes shared by the HTTP and WebSocket
// layers. Battle snapshots and events are serialized straight from the
// battle package; these are only the request/response envelopes around them.
package types

import "github.com/crateclash/battle-backend/internal/battle"

type BoxSelection struct {
	LootBoxID string `json:"loot_box_id"`
	Quantity  int    `json:"quantity"`
}

type CreateBattleRequest struct {
	Mode       string         `json:"mode"`
	MaxPlayers int            `json:"max_players"`
	EntryCost  int64          `json:"entry_cost"`
	Boxes      []BoxSelection `json:"boxes"`
	Bots       int            `json:"bots,omitempty"`
	UserID     string         `json:"user_id"`
}

type CreateBattleResponse struct {
	BattleID string `json:"battle_id"`
}

// CommandRequest covers join, leave, start and cancel: they all act on the
// battle in the path on behalf of the user in the body.
type CommandRequest struct {
	UserID string `json:"user_id"`
}

type JoinResponse struct {
	Participant battle.Participant `json:"participant"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerMessage frames everything pushed over a WebSocket. A stream opens
// with one "snapshot" message and then carries "event" messages in sequence
// order; "error" is terminal.
type ServerMessage struct {
	Type     string           `json:"type"` // "snapshot" | "event" | "error"
	Snapshot *battle.Snapshot `json:"snapshot,omitempty"`
	Event    *battle.Event    `json:"event,omitempty"`
	Error    string           `json:"error,omitempty"`
}
