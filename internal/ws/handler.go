// Package ws streams battle snapshots and events over a WebSocket. The
// stream is read-only: commands go over HTTP, the socket exists so every
// spectator sees rounds land in the same order.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/crateclash/battle-backend/internal/registry"
	"github.com/crateclash/battle-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	// eventBuffer is per subscriber; a client that falls this far behind is
	// dropped by the publisher and must resync with a fresh snapshot.
	eventBuffer = 32
)

func Handler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		battleID := r.URL.Query().Get("battle_id")
		if battleID == "" {
			http.Error(w, "missing battle_id", http.StatusBadRequest)
			return
		}

		b, err := reg.Get(r.Context(), battleID)
		if err != nil {
			http.Error(w, "battle not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		snap, events, err := b.Subscribe(r.Context(), clientID, eventBuffer)
		if err != nil {
			writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "battle closed"})
			return
		}
		defer b.Unsubscribe(clientID)

		if err := writeMsg(r.Context(), conn, types.ServerMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
			return
		}

		// Writer goroutine: drains the subscription until the publisher
		// closes it (terminal battle or slow-subscriber drop).
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				e := ev
				if err := writeMsg(writeCtx, conn, types.ServerMessage{Type: "event", Event: &e}); err != nil {
					return
				}
			}
		}()

		// Reader loop: the stream carries no commands, so inbound frames are
		// only pings and closes. Any read error, clean or not, ends the
		// session; Unsubscribe in the defer detaches from the publisher.
		readErr := make(chan error, 1)
		go func() {
			for {
				if _, _, err := conn.Read(r.Context()); err != nil {
					readErr <- err
					return
				}
			}
		}()

		select {
		case <-done:
		case <-readErr:
		case <-r.Context().Done():
		}
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, m types.ServerMessage) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
