package battle

import "testing"

func TestPublisher_AssignsStrictlyIncreasingSeq(t *testing.T) {
	p := newPublisher("b1")
	ch := make(chan Event, 8)
	p.subscribe("c1", ch)

	for i := 1; i <= 5; i++ {
		ev := p.publish(Event{Kind: EventStateChanged})
		if ev.Seq != int64(i) {
			t.Fatalf("want seq %d, got %d", i, ev.Seq)
		}
		if ev.BattleID != "b1" {
			t.Fatalf("battle id not stamped: %+v", ev)
		}
	}
	if p.watermark() != 5 {
		t.Fatalf("watermark %d", p.watermark())
	}

	for i := 1; i <= 5; i++ {
		got := <-ch
		if got.Seq != int64(i) {
			t.Fatalf("subscriber saw seq %d at position %d", got.Seq, i)
		}
	}
}

func TestPublisher_DropsSlowSubscriber(t *testing.T) {
	p := newPublisher("b1")
	slow := make(chan Event, 1)
	fast := make(chan Event, 8)
	p.subscribe("slow", slow)
	p.subscribe("fast", fast)

	p.publish(Event{Kind: EventStateChanged})
	p.publish(Event{Kind: EventStateChanged}) // slow buffer full -> dropped

	if p.count() != 1 {
		t.Fatalf("slow subscriber should be gone, have %d", p.count())
	}
	if _, ok := <-slow; !ok {
		// first event was buffered; channel must then be closed
	}
	if _, ok := <-slow; ok {
		t.Fatalf("slow channel should be closed")
	}
	if len(fast) != 2 {
		t.Fatalf("fast subscriber missed events: %d", len(fast))
	}
}

func TestPublisher_UnsubscribeClosesChannel(t *testing.T) {
	p := newPublisher("b1")
	ch := make(chan Event, 1)
	p.subscribe("c1", ch)
	p.unsubscribe("c1")

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed on unsubscribe")
	}
	// Publishing to nobody is fine.
	p.publish(Event{Kind: EventStateChanged})
}
