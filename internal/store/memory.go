package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and local development. It
// enforces the same opening uniqueness the postgres index does.
type Memory struct {
	mu           sync.Mutex
	battles      map[string]Battle
	boxes        map[string][]BattleBox
	participants map[string]BattleParticipant
	openings     map[string][]BattleOpening

	// FailInserts makes the next n InsertOpenings calls fail, for driving
	// the actor's retry and cancel-on-infra-failure paths.
	FailInserts int
	InsertErr   error
}

func NewMemory() *Memory {
	return &Memory{
		battles:      make(map[string]Battle),
		boxes:        make(map[string][]BattleBox),
		participants: make(map[string]BattleParticipant),
		openings:     make(map[string][]BattleOpening),
	}
}

func (m *Memory) CreateBattle(_ context.Context, b *Battle, boxes []BattleBox) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battles[b.ID] = *b
	m.boxes[b.ID] = append([]BattleBox(nil), boxes...)
	return nil
}

func (m *Memory) GetBattle(_ context.Context, id string) (*Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.battles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *Memory) UpdateBattleStatus(_ context.Context, id, status, cancelReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.battles[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	b.CancelReason = cancelReason
	m.battles[id] = b
	return nil
}

func (m *Memory) UpdateCurrentBox(_ context.Context, id string, box int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.battles[id]
	if !ok {
		return ErrNotFound
	}
	b.CurrentBox = box
	m.battles[id] = b
	return nil
}

func (m *Memory) ListBoxes(_ context.Context, battleID string) ([]BattleBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]BattleBox(nil), m.boxes[battleID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *Memory) AddParticipant(_ context.Context, p *BattleParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = *p
	return nil
}

func (m *Memory) RemoveParticipant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.participants, id)
	return nil
}

func (m *Memory) UpdateParticipantPosition(_ context.Context, id string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.Position = position
	m.participants[id] = p
	return nil
}

func (m *Memory) ListParticipants(_ context.Context, battleID string) ([]BattleParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BattleParticipant
	for _, p := range m.participants {
		if p.BattleID == battleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *Memory) InsertOpenings(_ context.Context, rows []BattleOpening) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInserts > 0 {
		m.FailInserts--
		return m.InsertErr
	}
	for _, r := range rows {
		for _, existing := range m.openings[r.BattleID] {
			if existing.ParticipantID == r.ParticipantID && existing.BoxInstance == r.BoxInstance {
				return ErrDuplicateOpening
			}
		}
	}
	for _, r := range rows {
		m.openings[r.BattleID] = append(m.openings[r.BattleID], r)
	}
	return nil
}

func (m *Memory) ListOpenings(_ context.Context, battleID string) ([]BattleOpening, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]BattleOpening(nil), m.openings[battleID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].BoxInstance != out[j].BoxInstance {
			return out[i].BoxInstance < out[j].BoxInstance
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}
