package store

import "time"

// Battle is the durable match record. Status and CurrentBox are written only
// by the battle actor that owns the id.
type Battle struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	Mode         string `gorm:"type:varchar(16);not null"`
	Status       string `gorm:"type:varchar(16);not null;index"`
	MaxPlayers   int    `gorm:"not null"`
	EntryCost    int64  `gorm:"not null"` // cents
	TotalPrize   int64  `gorm:"not null"`
	TotalBoxes   int    `gorm:"not null"`
	CurrentBox   int    `gorm:"not null;default:0"`
	CreatorID    string `gorm:"index;not null"`
	CancelReason string `gorm:"type:varchar(32)"`
	ExpiresAt    time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// BattleBox is one slot of the battle's ordered box sequence. Immutable once
// the battle leaves waiting.
type BattleBox struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	BattleID   string `gorm:"index:idx_battle_box_seq,unique;not null"`
	Sequence   int    `gorm:"index:idx_battle_box_seq,unique;not null"`
	LootBoxID  string `gorm:"not null"`
	Quantity   int    `gorm:"not null;default:1"`
	CostPerBox int64
}

// BattleParticipant is a claimed seat. UserID is nil for bots.
type BattleParticipant struct {
	ID        string  `gorm:"primaryKey;type:uuid"`
	BattleID  string  `gorm:"index:idx_battle_seat,unique;not null"`
	Position  int     `gorm:"index:idx_battle_seat,unique;not null"`
	UserID    *string `gorm:"index"`
	IsBot     bool    `gorm:"not null;default:false"`
	BotName   string
	BotAvatar string
	JoinedAt  time.Time
}

// BattleOpening is the append-only ledger: one row per participant per round,
// never updated or deleted. The unique index enforces exactly one row per
// (participant, box_instance).
type BattleOpening struct {
	ID            string  `gorm:"primaryKey;type:uuid"`
	BattleID      string  `gorm:"index;not null"`
	ParticipantID string  `gorm:"index:idx_opening_round,unique;not null"`
	BoxInstance   int     `gorm:"index:idx_opening_round,unique;not null"`
	Position      int     `gorm:"not null"` // seat position, frozen once active
	ItemID        string  `gorm:"not null"`
	ItemRarity    string  `gorm:"type:varchar(16)"`
	ItemValue     int64   `gorm:"not null"`
	Roll          float64 `gorm:"not null"` // raw selector roll, kept for audit replay
	OpenedAt      time.Time
}

// AccountEntry is one movement on a user balance. Debits are negative.
// The idempotency key makes retried debits/credits no-ops.
type AccountEntry struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	UserID         string `gorm:"index;not null"`
	Amount         int64  `gorm:"not null"`
	Reason         string `gorm:"type:varchar(32);not null"`
	IdempotencyKey string `gorm:"uniqueIndex;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// CatalogItem is one entry of a loot box's item pool. Row insertion order is
// the stable pool order the selector walks.
type CatalogItem struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	LootBoxID   string  `gorm:"index;not null"`
	ItemID      string  `gorm:"not null"`
	Rarity      string  `gorm:"type:varchar(16)"`
	MarketValue int64   `gorm:"not null"`
	Weight      float64 `gorm:"not null"`
}
