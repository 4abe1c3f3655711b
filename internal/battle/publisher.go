package battle

import "github.com/crateclash/battle-backend/internal/metrics"

// publisher fans events out to subscriber channels. It is only ever touched
// from the owning battle goroutine, so sequence assignment needs no lock and
// a subscriber's snapshot watermark is exact.
type publisher struct {
	battleID string
	seq      int64
	subs     map[string]chan Event
}

func newPublisher(battleID string) *publisher {
	return &publisher{battleID: battleID, subs: make(map[string]chan Event)}
}

func (p *publisher) subscribe(id string, ch chan Event) {
	p.subs[id] = ch
}

func (p *publisher) unsubscribe(id string) {
	if ch, ok := p.subs[id]; ok {
		close(ch)
		delete(p.subs, id)
	}
}

// publish stamps the next sequence number and delivers to every subscriber.
// A subscriber whose buffer is full is dropped rather than stalling the
// battle; it reconnects through the snapshot path.
func (p *publisher) publish(ev Event) Event {
	p.seq++
	ev.Seq = p.seq
	ev.BattleID = p.battleID

	metrics.EventsPublished.Inc()
	for id, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(p.subs, id)
			metrics.SubscribersDropped.Inc()
		}
	}
	return ev
}

func (p *publisher) watermark() int64 { return p.seq }

func (p *publisher) count() int { return len(p.subs) }

func (p *publisher) close() {
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}
