// Package registry owns the set of live battle actors: creation, lookup, and
// the periodic sweep that expires stale lobbies and retires finished ones.
// It is the only place battle actors are constructed, which is what enforces
// one instance per battle id.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crateclash/battle-backend/internal/battle"
	"github.com/crateclash/battle-backend/internal/engine"
	"github.com/crateclash/battle-backend/internal/metrics"
	"github.com/crateclash/battle-backend/internal/store"
)

var ErrUnknownBattle = errors.New("unknown battle")
var ErrInvalidMode = errors.New("invalid battle mode")
var ErrTooFewSeats = errors.New("battle needs at least two seats")
var ErrNoBoxes = errors.New("battle needs at least one box")

type Config struct {
	Battle      battle.Config
	RetireGrace time.Duration // how long a terminal battle stays resident
	DefaultTTL  time.Duration // expires_at horizon for new lobbies
}

func DefaultConfig() Config {
	return Config{
		Battle:      battle.DefaultConfig(),
		RetireGrace: 60 * time.Second,
		DefaultTTL:  10 * time.Minute,
	}
}

// CreateSpec is what the HTTP layer asks for; the registry fills in identity,
// prize and expiry.
type CreateSpec struct {
	Mode       engine.Mode
	MaxPlayers int
	EntryCost  int64
	Boxes      []battle.BoxSpec
	CreatorID  string
}

type msg interface{ isRegistryMsg() }

type createMsg struct {
	spec  CreateSpec
	reply chan createReply
}
type createReply struct {
	b   *battle.Battle
	err error
}

type getMsg struct {
	id    string
	reply chan *battle.Battle
}

type sweepMsg struct{}

type shutdownMsg struct{}

func (createMsg) isRegistryMsg()   {}
func (getMsg) isRegistryMsg()      {}
func (sweepMsg) isRegistryMsg()    {}
func (shutdownMsg) isRegistryMsg() {}

type Registry struct {
	inbox   chan msg
	battles map[string]*battle.Battle
	cfg     Config
	deps    battle.Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, cfg Config, deps battle.Deps) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:   make(chan msg, 64),
		battles: make(map[string]*battle.Battle),
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger.Named("registry"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case createMsg:
				b, err := r.handleCreate(msg.spec)
				msg.reply <- createReply{b: b, err: err}

			case getMsg:
				msg.reply <- r.battles[msg.id] // may be nil

			case sweepMsg:
				r.handleSweep()

			case shutdownMsg:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) shutdown() {
	for id, b := range r.battles {
		b.Shutdown()
		delete(r.battles, id)
	}
	r.cancel()
}

func (r *Registry) handleCreate(spec CreateSpec) (*battle.Battle, error) {
	if !spec.Mode.Valid() {
		return nil, ErrInvalidMode
	}
	if spec.MaxPlayers < 2 {
		return nil, ErrTooFewSeats
	}
	totalBoxes := 0
	for _, box := range spec.Boxes {
		q := box.Quantity
		if q < 1 {
			q = 1
		}
		totalBoxes += q
	}
	if totalBoxes == 0 {
		return nil, ErrNoBoxes
	}

	id := uuid.NewString()
	expiresAt := time.Now().Add(r.cfg.DefaultTTL)
	totalPrize := spec.EntryCost * int64(spec.MaxPlayers)

	row := store.Battle{
		ID:         id,
		Mode:       string(spec.Mode),
		Status:     string(battle.StatusWaiting),
		MaxPlayers: spec.MaxPlayers,
		EntryCost:  spec.EntryCost,
		TotalPrize: totalPrize,
		TotalBoxes: totalBoxes,
		CreatorID:  spec.CreatorID,
		ExpiresAt:  expiresAt,
	}
	boxRows := make([]store.BattleBox, len(spec.Boxes))
	for i, box := range spec.Boxes {
		boxRows[i] = store.BattleBox{
			BattleID:   id,
			Sequence:   i + 1,
			LootBoxID:  box.LootBoxID,
			Quantity:   max(box.Quantity, 1),
			CostPerBox: box.CostPerBox,
		}
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.deps.Store.CreateBattle(ctx, &row, boxRows); err != nil {
		return nil, err
	}

	b := battle.New(r.ctx, battle.Spec{
		ID:         id,
		Mode:       spec.Mode,
		MaxPlayers: spec.MaxPlayers,
		EntryCost:  spec.EntryCost,
		TotalPrize: totalPrize,
		Boxes:      spec.Boxes,
		CreatorID:  spec.CreatorID,
		ExpiresAt:  expiresAt,
	}, r.cfg.Battle, r.deps)

	r.battles[id] = b
	metrics.BattlesActive.Set(float64(len(r.battles)))
	metrics.BattlesCreated.WithLabelValues(string(spec.Mode)).Inc()
	r.log.Info("battle created",
		zap.String("battle_id", id), zap.String("mode", string(spec.Mode)),
		zap.Int("max_players", spec.MaxPlayers), zap.Int("total_boxes", totalBoxes))
	return b, nil
}

// handleSweep probes every resident battle. Waiting lobbies past their
// deadline get an expiry nudge (the actor re-checks the clock); terminal
// battles whose final event has been flushed are retired after the grace
// period, leaving only the persisted record.
func (r *Registry) handleSweep() {
	now := time.Now()
	for id, b := range r.battles {
		ctx, cancel := context.WithTimeout(r.ctx, 250*time.Millisecond)
		v, err := b.View(ctx)
		cancel()
		if errors.Is(err, battle.ErrBattleClosed) {
			// Actor already gone; drop the handle.
			delete(r.battles, id)
			continue
		}
		if err != nil {
			// The loop is busy (e.g. mid-write in a join); a timed-out probe
			// is not evidence of death. Try again next sweep.
			continue
		}

		switch {
		case v.Snapshot.Status == battle.StatusWaiting && now.After(v.Snapshot.ExpiresAt):
			b.Expire()
		case v.Snapshot.Status.Terminal() && v.FinalFlushed && now.Sub(v.TerminalAt) > r.cfg.RetireGrace:
			b.Shutdown()
			delete(r.battles, id)
			r.log.Info("battle retired", zap.String("battle_id", id), zap.String("status", string(v.Snapshot.Status)))
		}
	}
	metrics.BattlesActive.Set(float64(len(r.battles)))
}

// --- public API -------------------------------------------------------------

func (r *Registry) Create(ctx context.Context, spec CreateSpec) (*battle.Battle, error) {
	reply := make(chan createReply, 1)
	select {
	case r.inbox <- createMsg{spec: spec, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
	select {
	case rep := <-reply:
		return rep.b, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
}

func (r *Registry) Get(ctx context.Context, id string) (*battle.Battle, error) {
	reply := make(chan *battle.Battle, 1)
	select {
	case r.inbox <- getMsg{id: id, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
	select {
	case b := <-reply:
		if b == nil {
			return nil, ErrUnknownBattle
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
}

// Sweep is scheduled externally on a fixed interval.
func (r *Registry) Sweep() {
	select {
	case r.inbox <- sweepMsg{}:
	case <-r.ctx.Done():
	}
}

func (r *Registry) Shutdown() {
	select {
	case r.inbox <- shutdownMsg{}:
	case <-r.ctx.Done():
	}
}
