package mqtt

import (
	"fmt"
	"sync"
	"testing"
)

func TestRingBufferEmptySince(t *testing.T) {
	rb := newRingBuffer(10)
	got := rb.since(0)
	if got != nil {
		t.Errorf("expected nil from empty buffer, got %d items", len(got))
	}
}

func TestRingBufferPushAndSince(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 1; i <= 5; i++ {
		rb.push(inboxMsg{seq: uint64(i), text: fmt.Sprintf("m%d", i)})
	}

	got := rb.since(2)
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, m := range got {
		want := uint64(i + 3)
		if m.seq != want {
			t.Errorf("item %d: expected seq %d, got %d", i, want, m.seq)
		}
	}
}

func TestRingBufferOverflow(t *testing.T) {
	cap := 5
	rb := newRingBuffer(cap)

	// Push cap+3 items (1..8), buffer should keep the most recent 5 (4..8)
	firstDrop := false
	for i := 1; i <= cap+3; i++ {
		if rb.push(inboxMsg{seq: uint64(i)}) && i == cap+1 {
			firstDrop = true
		}
	}
	if !firstDrop {
		t.Error("expected push to report the first drop")
	}

	got := rb.since(0)
	if len(got) != cap {
		t.Fatalf("expected %d items, got %d", cap, len(got))
	}
	for i := 0; i < cap; i++ {
		want := uint64(i + 4) // oldest 3 were dropped
		if got[i].seq != want {
			t.Errorf("item %d: expected seq %d, got %d", i, want, got[i].seq)
		}
	}
}

func TestRingBufferOverflowReportedOncePerDiscard(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(inboxMsg{seq: 1})
	rb.push(inboxMsg{seq: 2})

	if !rb.push(inboxMsg{seq: 3}) {
		t.Error("first overflow should be reported")
	}
	if rb.push(inboxMsg{seq: 4}) {
		t.Error("second overflow should not be reported again")
	}

	rb.discardThrough(4)
	rb.push(inboxMsg{seq: 5})
	rb.push(inboxMsg{seq: 6})
	if !rb.push(inboxMsg{seq: 7}) {
		t.Error("overflow after discard should be reported")
	}
}

func TestRingBufferDiscardThrough(t *testing.T) {
	rb := newRingBuffer(5)
	for i := 1; i <= 4; i++ {
		rb.push(inboxMsg{seq: uint64(i)})
	}

	rb.discardThrough(2)
	if rb.len() != 2 {
		t.Fatalf("expected len 2 after discard, got %d", rb.len())
	}

	// Wrap around the end of the backing array
	for i := 5; i <= 7; i++ {
		rb.push(inboxMsg{seq: uint64(i)})
	}
	got := rb.since(0)
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	if got[0].seq != 3 || got[4].seq != 7 {
		t.Errorf("unexpected order: first=%d last=%d", got[0].seq, got[4].seq)
	}

	rb.discardThrough(7)
	if rb.len() != 0 {
		t.Errorf("expected empty buffer, got %d", rb.len())
	}
}

func TestInboxAssignsSequence(t *testing.T) {
	in := NewInbox(10)
	if seq := in.Push("/menu"); seq != 1 {
		t.Errorf("first seq: got %d, want 1", seq)
	}
	if seq := in.Push("/status"); seq != 2 {
		t.Errorf("second seq: got %d, want 2", seq)
	}

	msgs := in.Since(0)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "/menu" || msgs[1].Text != "/status" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
}

func TestInboxSinceForgetsConsumed(t *testing.T) {
	in := NewInbox(10)
	in.Push("a")
	in.Push("b")
	in.Push("c")

	msgs := in.Since(2)
	if len(msgs) != 1 || msgs[0].Text != "c" {
		t.Fatalf("expected only c, got %+v", msgs)
	}
	if in.Len() != 1 {
		t.Errorf("consumed messages should be forgotten, len=%d", in.Len())
	}

	if msgs := in.Since(3); msgs != nil {
		t.Errorf("expected nil, got %+v", msgs)
	}
}

func TestInboxOverflowCallback(t *testing.T) {
	in := NewInbox(2)
	calls := 0
	in.onOverflow = func(capacity int) {
		calls++
		if capacity != 2 {
			t.Errorf("capacity: got %d, want 2", capacity)
		}
	}

	for i := 0; i < 5; i++ {
		in.Push("x")
	}
	if calls != 1 {
		t.Errorf("overflow callback calls: got %d, want 1", calls)
	}
}

func TestInboxConcurrentPush(t *testing.T) {
	in := NewInbox(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				in.Push("m")
			}
		}()
	}
	wg.Wait()

	msgs := in.Since(0)
	if len(msgs) != 500 {
		t.Fatalf("expected 500 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Seq != uint64(i+1) {
			t.Fatalf("message %d: seq %d out of order", i, m.Seq)
		}
	}
}
