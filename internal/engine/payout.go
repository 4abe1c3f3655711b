package engine

import (
	"errors"
	"sort"
)

var ErrNoParticipants = errors.New("no participants")
var ErrUnknownMode = errors.New("unknown battle mode")

type Mode string

const (
	ModeClassic  Mode = "classic"
	ModeCrazy    Mode = "crazy"
	ModeShared   Mode = "shared"
	ModeFast     Mode = "fast"
	ModeJackpot  Mode = "jackpot"
	ModeTerminal Mode = "terminal"
	ModeClutch   Mode = "clutch"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeClassic, ModeCrazy, ModeShared, ModeFast, ModeJackpot, ModeTerminal, ModeClutch:
		return true
	}
	return false
}

// Participant is the slice of battle state the calculator needs: identity and
// seat position (the deterministic tie-break for rounding remainders).
type Participant struct {
	ID       string
	Position int
}

// Opening is one ledger row: one participant's draw in one round.
type Opening struct {
	ParticipantID string
	BoxInstance   int
	ItemID        string
	Value         int64
}

type Payout struct {
	ParticipantID string
	Amount        int64
}

// ComputePayouts distributes prize across participants per the mode's rule.
// It is total: every participant appears exactly once and the amounts sum to
// prize, with any integer remainder going to the lowest-position winner.
// rng is consulted only by the jackpot mode.
func ComputePayouts(mode Mode, parts []Participant, opens []Opening, prize int64, rng Rand) ([]Payout, error) {
	if len(parts) == 0 {
		return nil, ErrNoParticipants
	}

	byPos := make([]Participant, len(parts))
	copy(byPos, parts)
	sort.Slice(byPos, func(i, j int) bool { return byPos[i].Position < byPos[j].Position })

	var winners []Participant
	switch mode {
	case ModeShared:
		winners = byPos
	case ModeClassic, ModeFast:
		winners = pickByScore(byPos, Totals(opens), true)
	case ModeCrazy:
		winners = pickByScore(byPos, Totals(opens), false)
	case ModeTerminal:
		winners = pickByScore(byPos, lastRoundValues(opens), true)
	case ModeClutch:
		winners = pickByScore(byPos, bestItemValues(opens), true)
	case ModeJackpot:
		w, err := drawJackpotWinner(byPos, Totals(opens), rng)
		if err != nil {
			return nil, err
		}
		winners = []Participant{w}
	default:
		return nil, ErrUnknownMode
	}

	return split(byPos, winners, prize), nil
}

// Totals sums each participant's item values across all rounds.
func Totals(opens []Opening) map[string]int64 {
	totals := make(map[string]int64)
	for _, o := range opens {
		totals[o.ParticipantID] += o.Value
	}
	return totals
}

// lastRoundValues keeps only each participant's opening in the final round.
func lastRoundValues(opens []Opening) map[string]int64 {
	last := 0
	for _, o := range opens {
		if o.BoxInstance > last {
			last = o.BoxInstance
		}
	}
	vals := make(map[string]int64)
	for _, o := range opens {
		if o.BoxInstance == last {
			vals[o.ParticipantID] = o.Value
		}
	}
	return vals
}

// bestItemValues keeps each participant's single most valuable item.
func bestItemValues(opens []Opening) map[string]int64 {
	vals := make(map[string]int64)
	for _, o := range opens {
		if o.Value > vals[o.ParticipantID] {
			vals[o.ParticipantID] = o.Value
		}
	}
	return vals
}

// pickByScore returns every participant tied at the best score. byPos must be
// position-sorted so ties come out in seat order.
func pickByScore(byPos []Participant, scores map[string]int64, highest bool) []Participant {
	best := scores[byPos[0].ID]
	for _, p := range byPos[1:] {
		s := scores[p.ID]
		if (highest && s > best) || (!highest && s < best) {
			best = s
		}
	}
	var winners []Participant
	for _, p := range byPos {
		if scores[p.ID] == best {
			winners = append(winners, p)
		}
	}
	return winners
}

// drawJackpotWinner runs the selector with each participant's total value as
// weight. An all-zero battle still needs a winner, so it degrades to even
// odds.
func drawJackpotWinner(byPos []Participant, totals map[string]int64, rng Rand) (Participant, error) {
	pool := make([]PoolEntry, len(byPos))
	allZero := true
	for i, p := range byPos {
		pool[i] = PoolEntry{ItemID: p.ID, Weight: float64(totals[p.ID])}
		if totals[p.ID] > 0 {
			allZero = false
		}
	}
	if allZero {
		for i := range pool {
			pool[i].Weight = 1
		}
	}
	won, err := Draw(pool, rng)
	if err != nil {
		return Participant{}, err
	}
	for _, p := range byPos {
		if p.ID == won.ItemID {
			return p, nil
		}
	}
	return Participant{}, ErrEmptyPool
}

// split divides prize equally among winners, remainder to the lowest-position
// winner, and fills everyone else with zero.
func split(byPos, winners []Participant, prize int64) []Payout {
	share := prize / int64(len(winners))
	rem := prize % int64(len(winners))

	amounts := make(map[string]int64, len(winners))
	for i, w := range winners {
		a := share
		if i == 0 {
			a += rem
		}
		amounts[w.ID] = a
	}

	out := make([]Payout, len(byPos))
	for i, p := range byPos {
		out[i] = Payout{ParticipantID: p.ID, Amount: amounts[p.ID]}
	}
	return out
}
