package engine

import "sort"

// Standing is one row of the final scoreboard: summed value across all
// rounds and a 1-based rank (ties share a rank, competition style).
type Standing struct {
	ParticipantID string
	Position      int
	Total         int64
	Rank          int
}

// Standings ranks every participant by total item value, highest first,
// position as the display tie-break.
func Standings(parts []Participant, opens []Opening) []Standing {
	totals := Totals(opens)

	out := make([]Standing, len(parts))
	for i, p := range parts {
		out[i] = Standing{ParticipantID: p.ID, Position: p.Position, Total: totals[p.ID]}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Position < out[j].Position
	})

	for i := range out {
		if i > 0 && out[i].Total == out[i-1].Total {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}
