// Package bots fills empty battle seats with computer players. A bot joins
// through the same public API a human client uses and carries no balance;
// from that point on the battle loop treats it like any other seat.
package bots

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/crateclash/battle-backend/internal/battle"
	"github.com/crateclash/battle-backend/internal/engine"
)

var names = []string{
	"RustyCrate", "LuckyPix", "BoxBandit", "CrateGoblin", "MintCondition",
	"SpinDoctor", "OddsOtter", "PityTimer", "GoldPlated", "NullDrop",
}

var avatars = []string{
	"bot-fox", "bot-owl", "bot-crab", "bot-moth", "bot-newt",
	"bot-lynx", "bot-toad", "bot-wren", "bot-seal", "bot-vole",
}

// Controller hands out bot identities and seats them. Identity picks use the
// shared battle RNG so test runs are reproducible.
type Controller struct {
	rng engine.Rand
	log *zap.Logger
}

func New(rng engine.Rand, log *zap.Logger) *Controller {
	return &Controller{rng: rng, log: log.Named("bots")}
}

// Fill seats n bots into the battle. It stops at the first hard error but
// treats a full lobby as success: a human racing in for the seat is fine.
func (c *Controller) Fill(ctx context.Context, b *battle.Battle, n int) error {
	for i := 0; i < n; i++ {
		name, avatar := c.identity(i)
		_, err := b.Join(ctx, battle.JoinRequest{
			Bot:       true,
			BotName:   name,
			BotAvatar: avatar,
		})
		switch {
		case err == nil:
		case errors.Is(err, battle.ErrBattleFull), errors.Is(err, battle.ErrNotWaiting):
			// Lobby filled up (possibly auto-starting its countdown) while we
			// were seating; that is the happy path.
			return nil
		default:
			return fmt.Errorf("seat bot %d: %w", i, err)
		}
		c.log.Debug("bot seated", zap.String("battle_id", b.ID()), zap.String("name", name))
	}
	return nil
}

// identity returns a display name and avatar. The ordinal suffix keeps names
// unique within a battle even when the random picks collide.
func (c *Controller) identity(ordinal int) (string, string) {
	name := names[int(c.rng.Float64()*float64(len(names)))%len(names)]
	avatar := avatars[int(c.rng.Float64()*float64(len(avatars)))%len(avatars)]
	return fmt.Sprintf("%s-%d", name, ordinal+1), avatar
}
