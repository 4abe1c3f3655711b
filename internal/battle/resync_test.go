package battle

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/crateclash/battle-backend/internal/engine"
)

// clientState mirrors what a presentation-layer consumer keeps: bootstrap
// from a snapshot, then apply events in sequence order, discarding any seq
// at or below the watermark.
type clientState struct {
	seq          int64
	status       Status
	participants []Participant
	openings     []Opening
	standings    []FinalStanding
}

func fromSnapshot(s Snapshot) *clientState {
	return &clientState{
		seq:          s.Seq,
		status:       s.Status,
		participants: append([]Participant(nil), s.Participants...),
		openings:     append([]Opening(nil), s.Openings...),
		standings:    append([]FinalStanding(nil), s.Standings...),
	}
}

func (c *clientState) apply(t *testing.T, ev Event) {
	t.Helper()
	if ev.Seq <= c.seq {
		return // duplicate delivery, idempotent
	}
	if ev.Seq != c.seq+1 {
		t.Fatalf("sequence gap: have %d, got %d", c.seq, ev.Seq)
	}
	c.seq = ev.Seq

	switch ev.Kind {
	case EventParticipantJoined:
		c.participants = append(c.participants, *ev.Participant)
	case EventParticipantLeft:
		out := c.participants[:0]
		for _, p := range c.participants {
			if p.ID != ev.Participant.ID {
				p.Position = len(out)
				out = append(out, p)
			}
		}
		c.participants = out
	case EventStateChanged:
		c.status = ev.NewStatus
	case EventRoundResult:
		c.openings = append(c.openings, ev.Round.Openings...)
	case EventBattleFinished:
		c.standings = append([]FinalStanding(nil), ev.Standings...)
	}
}

func (c *clientState) normalized() clientState {
	out := *c
	out.seq = 0 // watermark differs between start and late joiners by design
	return out
}

// A client that watched from seq 0 and a client that bootstrapped from a
// late snapshot must converge to identical state.
func TestBattle_ResyncEquivalence(t *testing.T) {
	f := newFixture()
	f.accounts.SetBalance("u1", 1000)
	f.accounts.SetBalance("u2", 1000)
	f.accounts.SetBalance("u3", 1000)

	b := New(context.Background(), f.spec(engine.ModeClassic, 3, 100,
		BoxSpec{LootBoxID: "crate", Quantity: 2}), f.cfg, f.deps)
	defer b.Shutdown()

	ctx := context.Background()

	// Watcher A subscribes before anything happens.
	snapA, eventsA, err := b.Subscribe(ctx, "from-start", 64)
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}
	stateA := fromSnapshot(snapA)

	join(t, b, "u1")
	join(t, b, "u2")
	// Churn before the match locks: u2 leaves and two more join.
	if err := b.Leave(ctx, "u2"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	join(t, b, "u2")
	join(t, b, "u3")

	waitStatus(t, b, StatusFinished, 3*time.Second)

	// Watcher B arrives only now: snapshot carries everything, no tail.
	snapB, eventsB, err := b.Subscribe(ctx, "late", 64)
	if err != nil {
		t.Fatalf("subscribe B: %v", err)
	}
	stateB := fromSnapshot(snapB)

	// A drains its whole stream, with an injected duplicate to prove
	// idempotent apply.
	var last Event
	for stateA.status != StatusFinished || len(stateA.standings) == 0 {
		ev := recvEvent(t, eventsA, time.Second)
		stateA.apply(t, ev)
		stateA.apply(t, ev) // duplicate seq is a no-op
		last = ev
	}
	if last.Kind != EventBattleFinished {
		t.Fatalf("stream should end with battle_finished, got %s", last.Kind)
	}

	select {
	case ev := <-eventsB:
		t.Fatalf("late subscriber should see no tail events, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	if !reflect.DeepEqual(stateA.normalized(), stateB.normalized()) {
		t.Fatalf("resync divergence:\n from-start: %+v\n late:       %+v",
			stateA.normalized(), stateB.normalized())
	}
	if stateB.seq != last.Seq {
		t.Fatalf("late snapshot watermark %d, stream ended at %d", stateB.seq, last.Seq)
	}
}
