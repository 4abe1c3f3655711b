package battle

import (
	"time"

	"github.com/crateclash/battle-backend/internal/engine"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusExpired
}

// Reason codes surfaced to the presentation layer on cancellation.
const (
	ReasonPoolMisconfigured = "pool_misconfigured"
	ReasonInfraFailure      = "infra_failure"
	ReasonExpired           = "expired"
	ReasonCreatorCancelled  = "creator_cancelled"
)

type EventKind string

const (
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventStateChanged      EventKind = "state_changed"
	EventRoundResult       EventKind = "round_result"
	EventBattleFinished    EventKind = "battle_finished"
)

// Participant is a seated player as exposed to subscribers.
type Participant struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	IsBot    bool   `json:"is_bot"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Position int    `json:"position"`
}

// Opening mirrors one ledger row on the wire.
type Opening struct {
	ParticipantID string  `json:"participant_id"`
	Position      int     `json:"position"`
	BoxInstance   int     `json:"box_instance"`
	ItemID        string  `json:"item_id"`
	ItemRarity    string  `json:"item_rarity,omitempty"`
	ItemValue     int64   `json:"item_value"`
	Roll          float64 `json:"roll"`
}

// RoundResult carries every opening of one round, in seat order.
type RoundResult struct {
	BoxInstance int       `json:"box_instance"`
	Openings    []Opening `json:"openings"`
}

// FinalStanding is one participant's line on the result screen.
type FinalStanding struct {
	ParticipantID string `json:"participant_id"`
	Position      int    `json:"position"`
	Total         int64  `json:"total"`
	Rank          int    `json:"rank"`
	Payout        int64  `json:"payout"`
}

// Event is one entry of a battle's totally ordered stream. Seq increases by
// one per event within a battle; consumers treat a repeated Seq as a no-op.
type Event struct {
	Seq         int64           `json:"seq"`
	BattleID    string          `json:"battle_id"`
	Kind        EventKind       `json:"kind"`
	Participant *Participant    `json:"participant,omitempty"`
	OldStatus   Status          `json:"old_status,omitempty"`
	NewStatus   Status          `json:"new_status,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Round       *RoundResult    `json:"round,omitempty"`
	Standings   []FinalStanding `json:"standings,omitempty"`
}

// Snapshot is the point-in-time bootstrap for a (re)connecting subscriber:
// apply events with Seq greater than the watermark and you converge with a
// client that watched from the start.
type Snapshot struct {
	BattleID     string          `json:"battle_id"`
	Seq          int64           `json:"seq"`
	Status       Status          `json:"status"`
	Mode         engine.Mode     `json:"mode"`
	MaxPlayers   int             `json:"max_players"`
	EntryCost    int64           `json:"entry_cost"`
	TotalPrize   int64           `json:"total_prize"`
	TotalBoxes   int             `json:"total_boxes"`
	CurrentBox   int             `json:"current_box"`
	CreatorID    string          `json:"creator_id"`
	ExpiresAt    time.Time       `json:"expires_at"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	Participants []Participant   `json:"participants"`
	Openings     []Opening       `json:"openings"`
	Standings    []FinalStanding `json:"standings,omitempty"`
}
