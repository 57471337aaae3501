package mqtt

import "sync"

// inboxMsg is a received operator message awaiting the scheduler.
type inboxMsg struct {
	seq  uint64
	text string
}

// ringBuffer is a fixed-capacity FIFO of inbound messages.
// Not safe for concurrent use; the caller synchronizes.
type ringBuffer struct {
	buf      []inboxMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since the last discard
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]inboxMsg, capacity),
		capacity: capacity,
	}
}

// push appends msg, overwriting the oldest entry when full. It returns true
// only for the first overwrite since the last discard; later drops in the
// same overflow return false.
func (r *ringBuffer) push(msg inboxMsg) (firstDrop bool) {
	if r.count == r.capacity {
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		firstDrop = !r.overflow
		r.overflow = true
		return firstDrop
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

// oldest returns the index of the oldest entry.
func (r *ringBuffer) oldest() int {
	return (r.head - r.count + r.capacity) % r.capacity
}

// since returns the entries with seq > cursor, oldest first.
func (r *ringBuffer) since(cursor uint64) []inboxMsg {
	var result []inboxMsg
	start := r.oldest()
	for i := 0; i < r.count; i++ {
		m := r.buf[(start+i)%r.capacity]
		if m.seq > cursor {
			result = append(result, m)
		}
	}
	return result
}

// discardThrough drops entries with seq <= cursor from the front.
func (r *ringBuffer) discardThrough(cursor uint64) {
	for r.count > 0 && r.buf[r.oldest()].seq <= cursor {
		r.count--
	}
	if r.count == 0 {
		r.head = 0
	}
	r.overflow = false
}

func (r *ringBuffer) len() int {
	return r.count
}

// Inbox numbers inbound messages and holds them until consumed. It is safe
// for concurrent use: the MQTT client goroutine pushes, the scheduler fetches.
type Inbox struct {
	mu   sync.Mutex
	ring *ringBuffer
	seq  uint64

	// onOverflow, if set, is called (without the lock) the first time a
	// message is dropped after a discard.
	onOverflow func(capacity int)
}

// DefaultInboxCapacity bounds the number of unconsumed commands kept.
const DefaultInboxCapacity = 32

// NewInbox returns an empty inbox holding at most capacity messages.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{ring: newRingBuffer(capacity)}
}

// Push appends a message and returns its sequence number.
func (in *Inbox) Push(text string) uint64 {
	in.mu.Lock()
	in.seq++
	seq := in.seq
	firstDrop := in.ring.push(inboxMsg{seq: seq, text: text})
	cb := in.onOverflow
	capacity := in.ring.capacity
	in.mu.Unlock()

	if firstDrop && cb != nil {
		cb(capacity)
	}
	return seq
}

// Since returns the messages after cursor and forgets everything at or
// before it.
func (in *Inbox) Since(cursor uint64) []Message {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.ring.discardThrough(cursor)
	pending := in.ring.since(cursor)
	if len(pending) == 0 {
		return nil
	}
	out := make([]Message, len(pending))
	for i, m := range pending {
		out[i] = Message{Seq: m.seq, Text: m.text}
	}
	return out
}

// Len returns the number of held messages.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.ring.len()
}
