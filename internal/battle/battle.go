// Package battle runs one loot-box battle per goroutine: an actor loop over
// a typed message inbox owns all state for its battle id, so no other lock
// guards battle fields. Rounds fan out one selector draw per participant,
// barrier on the durable ledger write, and publish a sequenced event before
// the next round may start.
package battle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crateclash/battle-backend/internal/accounts"
	"github.com/crateclash/battle-backend/internal/catalog"
	"github.com/crateclash/battle-backend/internal/engine"
	"github.com/crateclash/battle-backend/internal/metrics"
	"github.com/crateclash/battle-backend/internal/store"
)

var ErrBattleFull = errors.New("battle is full")
var ErrAlreadyJoined = errors.New("already joined")
var ErrNotJoined = errors.New("not a participant")
var ErrNotWaiting = errors.New("battle no longer accepts this command")
var ErrNotCreator = errors.New("only the creator may do that")
var ErrTooFewParticipants = errors.New("not enough participants to start")
var ErrBattleClosed = errors.New("battle is shut down")

type Config struct {
	Countdown       time.Duration
	DrawTimeout     time.Duration // deadline for one round's draws + writes
	MinParticipants int           // floor for an explicit creator start
	WriteAttempts   int           // bounded retries for store/account calls
	WriteBackoff    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Countdown:       5 * time.Second,
		DrawTimeout:     10 * time.Second,
		MinParticipants: 2,
		WriteAttempts:   3,
		WriteBackoff:    200 * time.Millisecond,
	}
}

type Deps struct {
	Store    store.Store
	Accounts accounts.Service
	Catalog  catalog.Provider
	Rand     engine.Rand
	Logger   *zap.Logger
}

// BoxSpec is one entry of the battle's box sequence as requested at creation.
type BoxSpec struct {
	LootBoxID  string
	Quantity   int
	CostPerBox int64
}

// Spec carries everything needed to start a battle actor. The registry
// persists the battle row before the actor runs.
type Spec struct {
	ID         string
	Mode       engine.Mode
	MaxPlayers int
	EntryCost  int64
	TotalPrize int64
	Boxes      []BoxSpec
	CreatorID  string
	ExpiresAt  time.Time
}

type Msg interface{ isBattleMsg() }

type JoinRequest struct {
	UserID    string
	Bot       bool
	BotName   string
	BotAvatar string
}

type joinMsg struct {
	req   JoinRequest
	reply chan joinReply
}
type joinReply struct {
	p   Participant
	err error
}

type leaveMsg struct {
	userID string
	reply  chan error
}

type startMsg struct {
	callerID string
	reply    chan error
}

type cancelMsg struct {
	callerID string
	reply    chan error
}

type expireMsg struct{}

type subscribeMsg struct {
	clientID string
	outbox   chan Event
	reply    chan Snapshot
}

type unsubscribeMsg struct{ clientID string }

type viewMsg struct{ reply chan View }

type shutdownMsg struct{}

type countdownElapsed struct{ gen int }

type roundDone struct {
	box  int
	rows []store.BattleOpening
	err  error
}

type finishDone struct {
	standings []FinalStanding
	err       error
}

func (joinMsg) isBattleMsg()          {}
func (leaveMsg) isBattleMsg()         {}
func (startMsg) isBattleMsg()         {}
func (cancelMsg) isBattleMsg()        {}
func (expireMsg) isBattleMsg()        {}
func (subscribeMsg) isBattleMsg()     {}
func (unsubscribeMsg) isBattleMsg()   {}
func (viewMsg) isBattleMsg()          {}
func (shutdownMsg) isBattleMsg()      {}
func (countdownElapsed) isBattleMsg() {}
func (roundDone) isBattleMsg()        {}
func (finishDone) isBattleMsg()       {}

// View reflects actor internals without data races; used by tests and the
// registry's sweep.
type View struct {
	Snapshot     Snapshot
	Subscribers  int
	TerminalAt   time.Time
	FinalFlushed bool
}

type Battle struct {
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc

	id         string
	mode       engine.Mode
	maxPlayers int
	entryCost  int64
	totalPrize int64
	creatorID  string
	expiresAt  time.Time

	cfg  Config
	deps Deps
	log  *zap.Logger

	status       Status
	cancelReason string
	rounds       []string // loot box id per round, expanded from quantities
	currentBox   int
	participants []Participant
	openings     []Opening
	standings    []FinalStanding

	pub          *publisher
	timerGen     int
	terminalAt   time.Time
	finalFlushed bool
}

// New starts the actor. Exactly one instance may exist per battle id; the
// registry enforces that.
func New(parent context.Context, spec Spec, cfg Config, deps Deps) *Battle {
	ctx, cancel := context.WithCancel(parent)

	var rounds []string
	for _, box := range spec.Boxes {
		q := box.Quantity
		if q < 1 {
			q = 1
		}
		for i := 0; i < q; i++ {
			rounds = append(rounds, box.LootBoxID)
		}
	}

	b := &Battle{
		inbox:      make(chan Msg, 64),
		ctx:        ctx,
		cancel:     cancel,
		id:         spec.ID,
		mode:       spec.Mode,
		maxPlayers: spec.MaxPlayers,
		entryCost:  spec.EntryCost,
		totalPrize: spec.TotalPrize,
		creatorID:  spec.CreatorID,
		expiresAt:  spec.ExpiresAt,
		cfg:        cfg,
		deps:       deps,
		log:        deps.Logger.With(zap.String("battle_id", spec.ID)),
		status:     StatusWaiting,
		rounds:     rounds,
		pub:        newPublisher(spec.ID),
	}

	go b.loop()
	return b
}

func (b *Battle) ID() string { return b.id }

func (b *Battle) loop() {
	for {
		select {
		case <-b.ctx.Done():
			b.shutdown()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case joinMsg:
				p, err := b.handleJoin(msg.req)
				msg.reply <- joinReply{p: p, err: err}

			case leaveMsg:
				msg.reply <- b.handleLeave(msg.userID)

			case startMsg:
				msg.reply <- b.handleStart(msg.callerID)

			case cancelMsg:
				msg.reply <- b.handleCancel(msg.callerID)

			case expireMsg:
				b.handleExpire()

			case subscribeMsg:
				b.pub.subscribe(msg.clientID, msg.outbox)
				msg.reply <- b.snapshot()

			case unsubscribeMsg:
				b.pub.unsubscribe(msg.clientID)

			case viewMsg:
				msg.reply <- View{
					Snapshot:     b.snapshot(),
					Subscribers:  b.pub.count(),
					TerminalAt:   b.terminalAt,
					FinalFlushed: b.finalFlushed,
				}

			case countdownElapsed:
				// A stale fire from a superseded timer generation is ignored.
				if msg.gen != b.timerGen || b.status != StatusCountdown {
					break
				}
				b.activate()

			case roundDone:
				b.handleRoundDone(msg)

			case finishDone:
				b.handleFinishDone(msg)

			case shutdownMsg:
				b.shutdown()
				return
			}
		}
	}
}

func (b *Battle) shutdown() {
	b.pub.close()
	b.cancel()
}

// --- command handling -------------------------------------------------------

func (b *Battle) handleJoin(req JoinRequest) (Participant, error) {
	if b.status != StatusWaiting {
		return Participant{}, ErrNotWaiting
	}
	if len(b.participants) >= b.maxPlayers {
		return Participant{}, ErrBattleFull
	}
	if !req.Bot {
		for _, p := range b.participants {
			if !p.IsBot && p.UserID == req.UserID {
				return Participant{}, ErrAlreadyJoined
			}
		}
	}

	p := Participant{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		IsBot:    req.Bot,
		Name:     req.BotName,
		Avatar:   req.BotAvatar,
		Position: len(b.participants),
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.DrawTimeout)
	defer cancel()

	if !p.IsBot && b.entryCost > 0 {
		key := accounts.Key(b.id, p.ID, accounts.ReasonEntry)
		if err := b.deps.Accounts.Debit(ctx, p.UserID, b.entryCost, key); err != nil {
			return Participant{}, err
		}
	}

	row := store.BattleParticipant{
		ID:        p.ID,
		BattleID:  b.id,
		Position:  p.Position,
		IsBot:     p.IsBot,
		BotName:   p.Name,
		BotAvatar: p.Avatar,
		JoinedAt:  time.Now(),
	}
	if !p.IsBot {
		uid := p.UserID
		row.UserID = &uid
	}
	if err := b.retry(ctx, func() error { return b.deps.Store.AddParticipant(ctx, &row) }); err != nil {
		b.refundOne(p) // undo the entry debit
		return Participant{}, err
	}

	b.participants = append(b.participants, p)
	pCopy := p
	b.pub.publish(Event{Kind: EventParticipantJoined, Participant: &pCopy})
	b.log.Info("participant joined",
		zap.String("participant_id", p.ID), zap.Bool("bot", p.IsBot), zap.Int("position", p.Position))

	if len(b.participants) == b.maxPlayers {
		b.startCountdown()
	}
	return p, nil
}

func (b *Battle) handleLeave(userID string) error {
	if b.status != StatusWaiting {
		return ErrNotWaiting
	}
	idx := -1
	for i, p := range b.participants {
		if !p.IsBot && p.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotJoined
	}
	left := b.participants[idx]

	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.DrawTimeout)
	defer cancel()

	if err := b.retry(ctx, func() error { return b.deps.Store.RemoveParticipant(ctx, left.ID) }); err != nil {
		return err
	}

	// Seats stay contiguous from zero: everyone behind shifts down.
	b.participants = append(b.participants[:idx], b.participants[idx+1:]...)
	for i := idx; i < len(b.participants); i++ {
		b.participants[i].Position = i
		id := b.participants[i].ID
		pos := i
		_ = b.retry(ctx, func() error { return b.deps.Store.UpdateParticipantPosition(ctx, id, pos) })
	}

	b.refundOne(left)
	leftCopy := left
	b.pub.publish(Event{Kind: EventParticipantLeft, Participant: &leftCopy})
	b.log.Info("participant left", zap.String("participant_id", left.ID))
	return nil
}

func (b *Battle) handleStart(callerID string) error {
	if b.status != StatusWaiting {
		return ErrNotWaiting
	}
	if callerID != b.creatorID {
		return ErrNotCreator
	}
	if len(b.participants) < b.cfg.MinParticipants {
		return ErrTooFewParticipants
	}
	b.startCountdown()
	return nil
}

func (b *Battle) handleCancel(callerID string) error {
	if b.status != StatusWaiting {
		return ErrNotWaiting
	}
	if callerID != b.creatorID {
		return ErrNotCreator
	}
	b.terminal(StatusCancelled, ReasonCreatorCancelled)
	return nil
}

func (b *Battle) handleExpire() {
	if b.status != StatusWaiting {
		return
	}
	if b.expiresAt.IsZero() || time.Now().Before(b.expiresAt) {
		return
	}
	b.terminal(StatusExpired, ReasonExpired)
}

// --- lifecycle --------------------------------------------------------------

func (b *Battle) startCountdown() {
	b.setStatus(StatusCountdown, "")
	b.timerGen++
	gen := b.timerGen
	time.AfterFunc(b.cfg.Countdown, func() {
		b.post(countdownElapsed{gen: gen})
	})
	b.log.Info("countdown started", zap.Duration("countdown", b.cfg.Countdown))
}

func (b *Battle) activate() {
	// A battle with no rounds is a configuration defect, same as an empty
	// pool: fail closed and refund.
	if len(b.rounds) == 0 {
		b.terminal(StatusCancelled, ReasonPoolMisconfigured)
		return
	}
	b.setStatus(StatusActive, "")
	b.currentBox = 1
	b.runRound(1, true)
}

// runRound does the blocking work for one round off the actor goroutine:
// persist progress, fetch the pool, fan out one draw per participant, and
// batch-write the ledger rows. The loop advances only on its roundDone.
func (b *Battle) runRound(box int, firstRound bool) {
	boxID := b.rounds[box-1]
	parts := append([]Participant(nil), b.participants...)

	go func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(b.ctx, b.cfg.DrawTimeout)
		defer cancel()

		rows := make([]store.BattleOpening, len(parts))
		err := func() error {
			if firstRound {
				if err := b.retry(ctx, func() error {
					return b.deps.Store.UpdateBattleStatus(ctx, b.id, string(StatusActive), "")
				}); err != nil {
					return err
				}
			}
			if err := b.retry(ctx, func() error {
				return b.deps.Store.UpdateCurrentBox(ctx, b.id, box)
			}); err != nil {
				return err
			}

			pool, err := b.deps.Catalog.ItemPool(ctx, boxID)
			if err != nil {
				return err
			}

			g, _ := errgroup.WithContext(ctx)
			for i := range parts {
				i := i
				g.Go(func() error {
					entry, roll, err := engine.DrawRoll(pool, b.deps.Rand)
					if err != nil {
						return err
					}
					rows[i] = store.BattleOpening{
						ID:            uuid.NewString(),
						BattleID:      b.id,
						ParticipantID: parts[i].ID,
						BoxInstance:   box,
						Position:      parts[i].Position,
						ItemID:        entry.ItemID,
						ItemRarity:    entry.Rarity,
						ItemValue:     entry.Value,
						Roll:          roll,
						OpenedAt:      time.Now(),
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			return b.retry(ctx, func() error { return b.deps.Store.InsertOpenings(ctx, rows) })
		}()

		metrics.RoundDuration.Observe(time.Since(start).Seconds())
		b.post(roundDone{box: box, rows: rows, err: err})
	}()
}

func (b *Battle) handleRoundDone(msg roundDone) {
	if b.status != StatusActive || msg.box != b.currentBox {
		return
	}
	if msg.err != nil {
		reason := ReasonInfraFailure
		if errors.Is(msg.err, engine.ErrEmptyPool) || errors.Is(msg.err, catalog.ErrUnknownBox) {
			reason = ReasonPoolMisconfigured
		}
		b.log.Error("round failed", zap.Int("box", msg.box), zap.Error(msg.err))
		b.terminal(StatusCancelled, reason)
		return
	}

	result := RoundResult{BoxInstance: msg.box, Openings: make([]Opening, len(msg.rows))}
	for i, row := range msg.rows {
		result.Openings[i] = Opening{
			ParticipantID: row.ParticipantID,
			Position:      row.Position,
			BoxInstance:   row.BoxInstance,
			ItemID:        row.ItemID,
			ItemRarity:    row.ItemRarity,
			ItemValue:     row.ItemValue,
			Roll:          row.Roll,
		}
	}
	b.openings = append(b.openings, result.Openings...)
	b.pub.publish(Event{Kind: EventRoundResult, Round: &result})
	metrics.RoundsPlayed.Inc()

	if msg.box < len(b.rounds) {
		b.currentBox = msg.box + 1
		b.runRound(b.currentBox, false)
		return
	}
	b.runFinish()
}

// runFinish settles the battle off the actor goroutine: payouts from the full
// ledger, idempotent credits, then the durable status flip.
func (b *Battle) runFinish() {
	parts := append([]Participant(nil), b.participants...)
	opens := append([]Opening(nil), b.openings...)

	go func() {
		ctx, cancel := context.WithTimeout(b.ctx, b.cfg.DrawTimeout)
		defer cancel()

		eparts := make([]engine.Participant, len(parts))
		for i, p := range parts {
			eparts[i] = engine.Participant{ID: p.ID, Position: p.Position}
		}
		eopens := make([]engine.Opening, len(opens))
		for i, o := range opens {
			eopens[i] = engine.Opening{
				ParticipantID: o.ParticipantID,
				BoxInstance:   o.BoxInstance,
				ItemID:        o.ItemID,
				Value:         o.ItemValue,
			}
		}

		payouts, err := engine.ComputePayouts(b.mode, eparts, eopens, b.totalPrize, b.deps.Rand)
		if err != nil {
			b.post(finishDone{err: err})
			return
		}
		amounts := make(map[string]int64, len(payouts))
		for _, p := range payouts {
			amounts[p.ParticipantID] = p.Amount
		}

		byID := make(map[string]Participant, len(parts))
		for _, p := range parts {
			byID[p.ID] = p
		}
		for _, p := range parts {
			amount := amounts[p.ID]
			if p.IsBot || amount <= 0 {
				continue
			}
			key := accounts.Key(b.id, p.ID, accounts.ReasonPayout)
			if err := b.retry(ctx, func() error {
				return b.deps.Accounts.Credit(ctx, p.UserID, amount, key)
			}); err != nil {
				// Credits are idempotent; ops can re-drive them. The match
				// itself is settled, so we still finish.
				b.log.Error("payout credit failed",
					zap.String("participant_id", p.ID), zap.Int64("amount", amount), zap.Error(err))
			} else {
				metrics.PayoutCents.Add(float64(amount))
			}
		}

		standings := make([]FinalStanding, 0, len(parts))
		for _, s := range engine.Standings(eparts, eopens) {
			standings = append(standings, FinalStanding{
				ParticipantID: s.ParticipantID,
				Position:      byID[s.ParticipantID].Position,
				Total:         s.Total,
				Rank:          s.Rank,
				Payout:        amounts[s.ParticipantID],
			})
		}

		if err := b.retry(ctx, func() error {
			return b.deps.Store.UpdateBattleStatus(ctx, b.id, string(StatusFinished), "")
		}); err != nil {
			b.log.Error("persisting finished status failed", zap.Error(err))
		}

		b.post(finishDone{standings: standings})
	}()
}

func (b *Battle) handleFinishDone(msg finishDone) {
	if b.status != StatusActive {
		return
	}
	if msg.err != nil {
		b.log.Error("settlement failed", zap.Error(msg.err))
		b.terminal(StatusCancelled, ReasonInfraFailure)
		return
	}
	b.standings = msg.standings
	b.setStatus(StatusFinished, "")
	b.pub.publish(Event{Kind: EventBattleFinished, Standings: msg.standings})
	b.markTerminal(StatusFinished)
	b.log.Info("battle finished", zap.Int("rounds", len(b.rounds)), zap.Int("participants", len(b.participants)))
}

// terminal moves the battle to cancelled/expired, refunds every human seat,
// and persists the flip. Refund and store calls run off the loop; the status
// change and its event are immediate.
func (b *Battle) terminal(status Status, reason string) {
	b.cancelReason = reason
	b.setStatus(status, reason)
	b.markTerminal(status)

	parts := append([]Participant(nil), b.participants...)
	go func() {
		ctx, cancel := context.WithTimeout(b.ctx, b.cfg.DrawTimeout)
		defer cancel()

		if err := b.retry(ctx, func() error {
			return b.deps.Store.UpdateBattleStatus(ctx, b.id, string(status), reason)
		}); err != nil {
			b.log.Error("persisting terminal status failed", zap.Error(err))
		}
		for _, p := range parts {
			b.refundOne(p)
		}
	}()
}

// refundOne returns one human participant's entry cost, keyed so a retry
// can never double-refund.
func (b *Battle) refundOne(p Participant) {
	if p.IsBot || b.entryCost <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), b.cfg.DrawTimeout)
	defer cancel()

	key := accounts.Key(b.id, p.ID, accounts.ReasonRefund)
	if err := b.retry(ctx, func() error {
		return b.deps.Accounts.Credit(ctx, p.UserID, b.entryCost, key)
	}); err != nil {
		b.log.Error("refund failed", zap.String("participant_id", p.ID), zap.Error(err))
	}
}

func (b *Battle) setStatus(status Status, reason string) {
	old := b.status
	b.status = status
	b.pub.publish(Event{Kind: EventStateChanged, OldStatus: old, NewStatus: status, Reason: reason})
}

func (b *Battle) markTerminal(status Status) {
	b.terminalAt = time.Now()
	b.finalFlushed = true
	metrics.BattlesTerminal.WithLabelValues(string(status)).Inc()
}

func (b *Battle) snapshot() Snapshot {
	return Snapshot{
		BattleID:     b.id,
		Seq:          b.pub.watermark(),
		Status:       b.status,
		Mode:         b.mode,
		MaxPlayers:   b.maxPlayers,
		EntryCost:    b.entryCost,
		TotalPrize:   b.totalPrize,
		TotalBoxes:   len(b.rounds),
		CurrentBox:   b.currentBox,
		CreatorID:    b.creatorID,
		ExpiresAt:    b.expiresAt,
		CancelReason: b.cancelReason,
		Participants: append([]Participant(nil), b.participants...),
		Openings:     append([]Opening(nil), b.openings...),
		Standings:    append([]FinalStanding(nil), b.standings...),
	}
}

// retry runs op with bounded attempts and growing backoff. Used for store
// and account calls, which are transient-failure territory; the caller
// decides what an exhausted retry means.
func (b *Battle) retry(ctx context.Context, op func() error) error {
	attempts := b.cfg.WriteAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if errors.Is(err, accounts.ErrInsufficientFunds) {
			return err // not transient
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(b.cfg.WriteBackoff << i):
		}
	}
	return err
}

// post delivers an internal message without ever blocking a worker forever.
func (b *Battle) post(m Msg) {
	select {
	case b.inbox <- m:
	case <-b.ctx.Done():
	}
}
