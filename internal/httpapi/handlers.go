package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crateclash/battle-backend/internal/accounts"
	"github.com/crateclash/battle-backend/internal/battle"
	"github.com/crateclash/battle-backend/internal/engine"
	"github.com/crateclash/battle-backend/internal/registry"
	"github.com/crateclash/battle-backend/internal/store"
	"github.com/crateclash/battle-backend/internal/types"
)

func CreateBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateBattleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id required")
			return
		}

		boxes := make([]battle.BoxSpec, len(req.Boxes))
		for i, b := range req.Boxes {
			boxes[i] = battle.BoxSpec{LootBoxID: b.LootBoxID, Quantity: b.Quantity}
		}

		b, err := d.Registry.Create(r.Context(), registry.CreateSpec{
			Mode:       engine.Mode(req.Mode),
			MaxPlayers: req.MaxPlayers,
			EntryCost:  req.EntryCost,
			Boxes:      boxes,
			CreatorID:  req.UserID,
		})
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		if req.Bots > 0 {
			if err := d.Bots.Fill(r.Context(), b, req.Bots); err != nil {
				d.Logger.Warn("bot fill incomplete",
					zap.String("battle_id", b.ID()), zap.Error(err))
			}
		}

		writeJSON(w, http.StatusCreated, types.CreateBattleResponse{BattleID: b.ID()})
	}
}

// GetBattle serves live battles from the actor and retired ones from the
// store, so result screens keep working after the registry evicts a battle.
func GetBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if b, err := d.Registry.Get(r.Context(), id); err == nil {
			if v, err := b.View(r.Context()); err == nil {
				writeJSON(w, http.StatusOK, v.Snapshot)
				return
			}
			// Actor shut down between Get and View; fall through to the store.
		}

		snap, err := archivedSnapshot(r.Context(), d.Store, id)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func JoinBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, req, ok := commandTarget(w, r, d)
		if !ok {
			return
		}
		p, err := b.Join(r.Context(), battle.JoinRequest{UserID: req.UserID})
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.JoinResponse{Participant: p})
	}
}

func LeaveBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, req, ok := commandTarget(w, r, d)
		if !ok {
			return
		}
		if err := b.Leave(r.Context(), req.UserID); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func StartBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, req, ok := commandTarget(w, r, d)
		if !ok {
			return
		}
		if err := b.Start(r.Context(), req.UserID); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CancelBattle(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, req, ok := commandTarget(w, r, d)
		if !ok {
			return
		}
		if err := b.Cancel(r.Context(), req.UserID); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// commandTarget does the shared decode-and-lookup for the four command
// endpoints. It writes the error response itself when ok is false.
func commandTarget(w http.ResponseWriter, r *http.Request, d Deps) (*battle.Battle, types.CommandRequest, bool) {
	var req types.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return nil, req, false
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return nil, req, false
	}
	b, err := d.Registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, req, false
	}
	return b, req, true
}

// archivedSnapshot rebuilds a read-only snapshot from persisted rows. Seq is
// zero: there is no live stream to resume against.
func archivedSnapshot(ctx context.Context, st store.Store, id string) (battle.Snapshot, error) {
	row, err := st.GetBattle(ctx, id)
	if err != nil {
		return battle.Snapshot{}, err
	}
	parts, err := st.ListParticipants(ctx, id)
	if err != nil {
		return battle.Snapshot{}, err
	}
	opens, err := st.ListOpenings(ctx, id)
	if err != nil {
		return battle.Snapshot{}, err
	}

	snap := battle.Snapshot{
		BattleID:     row.ID,
		Status:       battle.Status(row.Status),
		Mode:         engine.Mode(row.Mode),
		MaxPlayers:   row.MaxPlayers,
		EntryCost:    row.EntryCost,
		TotalPrize:   row.TotalPrize,
		TotalBoxes:   row.TotalBoxes,
		CurrentBox:   row.CurrentBox,
		CreatorID:    row.CreatorID,
		ExpiresAt:    row.ExpiresAt,
		CancelReason: row.CancelReason,
		Participants: make([]battle.Participant, 0, len(parts)),
		Openings:     make([]battle.Opening, 0, len(opens)),
	}
	for _, p := range parts {
		userID := ""
		if p.UserID != nil {
			userID = *p.UserID
		}
		snap.Participants = append(snap.Participants, battle.Participant{
			ID:       p.ID,
			UserID:   userID,
			IsBot:    p.IsBot,
			Name:     p.BotName,
			Avatar:   p.BotAvatar,
			Position: p.Position,
		})
	}
	for _, o := range opens {
		snap.Openings = append(snap.Openings, battle.Opening{
			ParticipantID: o.ParticipantID,
			Position:      o.Position,
			BoxInstance:   o.BoxInstance,
			ItemID:        o.ItemID,
			ItemRarity:    o.ItemRarity,
			ItemValue:     o.ItemValue,
			Roll:          o.Roll,
		})
	}
	return snap, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrInvalidMode),
		errors.Is(err, registry.ErrTooFewSeats),
		errors.Is(err, registry.ErrNoBoxes):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrUnknownBattle),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, battle.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, battle.ErrBattleFull),
		errors.Is(err, battle.ErrAlreadyJoined),
		errors.Is(err, battle.ErrNotJoined),
		errors.Is(err, battle.ErrNotWaiting),
		errors.Is(err, battle.ErrTooFewParticipants):
		return http.StatusConflict
	case errors.Is(err, battle.ErrBattleClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}
