package battle

import "context"

// The exported methods wrap inbox messages with reply channels so callers
// (HTTP handlers, bots, tests) never touch actor internals. Bots use the
// same Join as humans.

func (b *Battle) Join(ctx context.Context, req JoinRequest) (Participant, error) {
	reply := make(chan joinReply, 1)
	if err := b.send(ctx, joinMsg{req: req, reply: reply}); err != nil {
		return Participant{}, err
	}
	select {
	case r := <-reply:
		return r.p, r.err
	case <-ctx.Done():
		return Participant{}, ctx.Err()
	case <-b.ctx.Done():
		return Participant{}, ErrBattleClosed
	}
}

func (b *Battle) Leave(ctx context.Context, userID string) error {
	reply := make(chan error, 1)
	if err := b.send(ctx, leaveMsg{userID: userID, reply: reply}); err != nil {
		return err
	}
	return b.recvErr(ctx, reply)
}

func (b *Battle) Start(ctx context.Context, callerID string) error {
	reply := make(chan error, 1)
	if err := b.send(ctx, startMsg{callerID: callerID, reply: reply}); err != nil {
		return err
	}
	return b.recvErr(ctx, reply)
}

func (b *Battle) Cancel(ctx context.Context, callerID string) error {
	reply := make(chan error, 1)
	if err := b.send(ctx, cancelMsg{callerID: callerID, reply: reply}); err != nil {
		return err
	}
	return b.recvErr(ctx, reply)
}

// Subscribe registers an event stream and returns the bootstrap snapshot.
// Events with Seq greater than the snapshot watermark follow on the channel;
// the channel closes when the subscriber is dropped or the battle retires.
func (b *Battle) Subscribe(ctx context.Context, clientID string, buffer int) (Snapshot, <-chan Event, error) {
	if buffer < 1 {
		buffer = 16
	}
	out := make(chan Event, buffer)
	reply := make(chan Snapshot, 1)
	if err := b.send(ctx, subscribeMsg{clientID: clientID, outbox: out, reply: reply}); err != nil {
		return Snapshot{}, nil, err
	}
	select {
	case snap := <-reply:
		return snap, out, nil
	case <-ctx.Done():
		return Snapshot{}, nil, ctx.Err()
	case <-b.ctx.Done():
		return Snapshot{}, nil, ErrBattleClosed
	}
}

func (b *Battle) Unsubscribe(clientID string) {
	select {
	case b.inbox <- unsubscribeMsg{clientID: clientID}:
	case <-b.ctx.Done():
	}
}

// Expire nudges a waiting battle past its deadline; the actor re-checks the
// clock itself. Called by the registry sweep.
func (b *Battle) Expire() {
	select {
	case b.inbox <- expireMsg{}:
	case <-b.ctx.Done():
	}
}

func (b *Battle) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := b.send(ctx, viewMsg{reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-b.ctx.Done():
		return View{}, ErrBattleClosed
	}
}

func (b *Battle) Shutdown() {
	select {
	case b.inbox <- shutdownMsg{}:
	case <-b.ctx.Done():
	}
}

// Done reports actor termination, for tests and the registry.
func (b *Battle) Done() <-chan struct{} { return b.ctx.Done() }

func (b *Battle) send(ctx context.Context, m Msg) error {
	select {
	case b.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrBattleClosed
	}
}

func (b *Battle) recvErr(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrBattleClosed
	}
}
