package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crateclash/battle-backend/internal/accounts"
	"github.com/crateclash/battle-backend/internal/battle"
	"github.com/crateclash/battle-backend/internal/catalog"
	"github.com/crateclash/battle-backend/internal/engine"
	"github.com/crateclash/battle-backend/internal/store"
)

func testDeps() (battle.Deps, *accounts.Memory, *store.Memory) {
	st := store.NewMemory()
	acc := accounts.NewMemory()
	cat := catalog.NewStatic()
	cat.Put("crate", []engine.PoolEntry{
		{ItemID: "pin", Rarity: "common", Value: 10, Weight: 1},
	})
	return battle.Deps{
		Store:    st,
		Accounts: acc,
		Catalog:  cat,
		Rand:     battle.NewLockedRand(1),
		Logger:   zap.NewNop(),
	}, acc, st
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Battle.Countdown = 10 * time.Millisecond
	cfg.Battle.WriteBackoff = time.Millisecond
	cfg.RetireGrace = 30 * time.Millisecond
	cfg.DefaultTTL = time.Hour
	return cfg
}

func TestRegistry_CreateGetSameHandle(t *testing.T) {
	deps, _, _ := testDeps()
	r := New(context.Background(), testConfig(), deps)
	defer r.Shutdown()

	ctx := context.Background()
	b1, err := r.Create(ctx, CreateSpec{
		Mode:       engine.ModeClassic,
		MaxPlayers: 2,
		EntryCost:  100,
		Boxes:      []battle.BoxSpec{{LootBoxID: "crate", Quantity: 1}},
		CreatorID:  "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b2, err := r.Get(ctx, b1.ID())
	if err != nil || b1 != b2 {
		t.Fatalf("expected same battle handle, err %v", err)
	}

	if _, err := r.Get(ctx, "nope"); !errors.Is(err, ErrUnknownBattle) {
		t.Fatalf("want ErrUnknownBattle, got %v", err)
	}
}

func TestRegistry_CreatePersistsBattleRow(t *testing.T) {
	deps, _, st := testDeps()
	r := New(context.Background(), testConfig(), deps)
	defer r.Shutdown()

	ctx := context.Background()
	b, err := r.Create(ctx, CreateSpec{
		Mode:       engine.ModeCrazy,
		MaxPlayers: 4,
		EntryCost:  250,
		Boxes: []battle.BoxSpec{
			{LootBoxID: "crate", Quantity: 2, CostPerBox: 100},
			{LootBoxID: "crate", Quantity: 1, CostPerBox: 50},
		},
		CreatorID: "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	row, err := st.GetBattle(ctx, b.ID())
	if err != nil {
		t.Fatalf("persisted row: %v", err)
	}
	if row.Mode != "crazy" || row.TotalBoxes != 3 || row.TotalPrize != 1000 || row.Status != "waiting" {
		t.Fatalf("row fields: %+v", row)
	}

	boxes, err := st.ListBoxes(ctx, b.ID())
	if err != nil || len(boxes) != 2 {
		t.Fatalf("boxes: %+v err %v", boxes, err)
	}
	if boxes[0].Sequence != 1 || boxes[1].Sequence != 2 {
		t.Fatalf("box sequence: %+v", boxes)
	}
}

func TestRegistry_CreateValidation(t *testing.T) {
	deps, _, _ := testDeps()
	r := New(context.Background(), testConfig(), deps)
	defer r.Shutdown()

	ctx := context.Background()
	cases := []struct {
		name string
		spec CreateSpec
		want error
	}{
		{
			name: "bogus mode",
			spec: CreateSpec{Mode: "roulette", MaxPlayers: 2, Boxes: []battle.BoxSpec{{LootBoxID: "crate"}}},
			want: ErrInvalidMode,
		},
		{
			name: "single seat",
			spec: CreateSpec{Mode: engine.ModeClassic, MaxPlayers: 1, Boxes: []battle.BoxSpec{{LootBoxID: "crate"}}},
			want: ErrTooFewSeats,
		},
		{
			name: "no boxes",
			spec: CreateSpec{Mode: engine.ModeClassic, MaxPlayers: 2},
			want: ErrNoBoxes,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Create(ctx, tc.spec); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

// slowSeatStore stalls seat writes so the battle loop is demonstrably busy
// when the sweep probes it.
type slowSeatStore struct {
	*store.Memory
	delay time.Duration
}

func (s *slowSeatStore) AddParticipant(ctx context.Context, p *store.BattleParticipant) error {
	time.Sleep(s.delay)
	return s.Memory.AddParticipant(ctx, p)
}

func TestRegistry_SweepSkipsBusyBattle(t *testing.T) {
	deps, acc, _ := testDeps()
	acc.SetBalance("u1", 1000)
	deps.Store = &slowSeatStore{Memory: store.NewMemory(), delay: 600 * time.Millisecond}

	r := New(context.Background(), testConfig(), deps)
	defer r.Shutdown()

	ctx := context.Background()
	b, err := r.Create(ctx, CreateSpec{
		Mode:       engine.ModeClassic,
		MaxPlayers: 4,
		EntryCost:  100,
		Boxes:      []battle.BoxSpec{{LootBoxID: "crate", Quantity: 1}},
		CreatorID:  "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := b.ID()

	joined := make(chan error, 1)
	go func() {
		_, err := b.Join(ctx, battle.JoinRequest{UserID: "u1"})
		joined <- err
	}()

	// Let the loop get stuck in the seat write, then sweep: the probe times
	// out, which must not be read as a dead actor.
	time.Sleep(100 * time.Millisecond)
	r.Sweep()

	if err := <-joined; err != nil {
		t.Fatalf("join: %v", err)
	}
	got, err := r.Get(ctx, id)
	if err != nil || got != b {
		t.Fatalf("busy battle evicted by sweep: %v", err)
	}
	v, err := b.View(ctx)
	if err != nil || v.Snapshot.Status != battle.StatusWaiting {
		t.Fatalf("battle state after sweep: %+v err %v", v, err)
	}

	// A battle whose actor really is gone does get dropped.
	b.Shutdown()
	<-b.Done()
	r.Sweep()
	deadline := time.Now().Add(time.Second)
	for {
		if _, err := r.Get(ctx, id); errors.Is(err, ErrUnknownBattle) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dead battle never dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistry_SweepExpiresStaleLobby(t *testing.T) {
	deps, acc, _ := testDeps()
	acc.SetBalance("u1", 1000)
	acc.SetBalance("u2", 1000)

	cfg := testConfig()
	cfg.DefaultTTL = 20 * time.Millisecond

	r := New(context.Background(), cfg, deps)
	defer r.Shutdown()

	ctx := context.Background()
	b, err := r.Create(ctx, CreateSpec{
		Mode:       engine.ModeClassic,
		MaxPlayers: 4,
		EntryCost:  100,
		Boxes:      []battle.BoxSpec{{LootBoxID: "crate", Quantity: 1}},
		CreatorID:  "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.Join(ctx, battle.JoinRequest{UserID: "u1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := b.Join(ctx, battle.JoinRequest{UserID: "u2"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	r.Sweep()

	deadline := time.Now().Add(time.Second)
	for {
		v, err := b.View(ctx)
		if err == nil && v.Snapshot.Status == battle.StatusExpired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("lobby not expired by sweep")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Both entries come back.
	deadline = time.Now().Add(time.Second)
	for {
		b1, _ := acc.Balance(ctx, "u1")
		b2, _ := acc.Balance(ctx, "u2")
		if b1 == 1000 && b2 == 1000 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("refunds incomplete: %d %d", b1, b2)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistry_SweepRetiresTerminalAfterGrace(t *testing.T) {
	deps, acc, _ := testDeps()
	acc.SetBalance("u1", 1000)
	acc.SetBalance("u2", 1000)

	r := New(context.Background(), testConfig(), deps)
	defer r.Shutdown()

	ctx := context.Background()
	b, err := r.Create(ctx, CreateSpec{
		Mode:       engine.ModeClassic,
		MaxPlayers: 2,
		EntryCost:  100,
		Boxes:      []battle.BoxSpec{{LootBoxID: "crate", Quantity: 1}},
		CreatorID:  "u1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := b.ID()
	if _, err := b.Join(ctx, battle.JoinRequest{UserID: "u1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := b.Join(ctx, battle.JoinRequest{UserID: "u2"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Run to finished.
	deadline := time.Now().Add(2 * time.Second)
	for {
		v, err := b.View(ctx)
		if err == nil && v.Snapshot.Status == battle.StatusFinished {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("battle never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Inside the grace period the handle stays resident.
	r.Sweep()
	if _, err := r.Get(ctx, id); err != nil {
		t.Fatalf("retired too early: %v", err)
	}

	time.Sleep(40 * time.Millisecond) // past RetireGrace
	r.Sweep()

	deadline = time.Now().Add(time.Second)
	for {
		if _, err := r.Get(ctx, id); errors.Is(err, ErrUnknownBattle) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("terminal battle never retired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
