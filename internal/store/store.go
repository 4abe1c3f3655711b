package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateOpening = errors.New("duplicate opening for participant and round")

// Store is the persistence boundary the battle actor and HTTP layer consume.
// Openings are append-only; battle field writes are serialized by the
// one-actor-per-id rule, so no update needs its own locking.
type Store interface {
	CreateBattle(ctx context.Context, b *Battle, boxes []BattleBox) error
	GetBattle(ctx context.Context, id string) (*Battle, error)
	UpdateBattleStatus(ctx context.Context, id, status, cancelReason string) error
	UpdateCurrentBox(ctx context.Context, id string, box int) error
	ListBoxes(ctx context.Context, battleID string) ([]BattleBox, error)

	AddParticipant(ctx context.Context, p *BattleParticipant) error
	RemoveParticipant(ctx context.Context, id string) error
	UpdateParticipantPosition(ctx context.Context, id string, position int) error
	ListParticipants(ctx context.Context, battleID string) ([]BattleParticipant, error)

	// InsertOpenings writes one round's rows as an atomic batch.
	InsertOpenings(ctx context.Context, rows []BattleOpening) error
	ListOpenings(ctx context.Context, battleID string) ([]BattleOpening, error)
}
