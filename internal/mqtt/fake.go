package mqtt

import "context"

// FakeChannel records outbound traffic and serves scripted inbound messages.
type FakeChannel struct {
	// Inbound contains messages FetchSince may return.
	Inbound []Message

	// FetchError, if set, will be returned by FetchSince.
	FetchError error

	// Cursors records the cursor passed to each FetchSince call.
	Cursors []uint64

	// Sent contains every text successfully sent, in order.
	Sent []string

	// SendCalls counts Send calls, including failed ones.
	SendCalls int

	// SendError, if set, will be returned by every Send.
	SendError error

	// SendErrors fails specific Send calls, keyed by 1-based call number.
	SendErrors map[int]error

	// OnSend, if set, is called at the start of every Send.
	OnSend func(text string)

	// Readings contains all readings that were published.
	Readings []Reading

	// PublishReadingError, if set, will be returned by PublishReading.
	PublishReadingError error

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	seq uint64
}

// NewFakeChannel creates a FakeChannel for testing.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{}
}

// Queue appends an inbound message with the next sequence number.
func (f *FakeChannel) Queue(texts ...string) {
	for _, text := range texts {
		f.seq++
		f.Inbound = append(f.Inbound, Message{Seq: f.seq, Text: text})
	}
}

// FetchSince returns the queued messages after cursor.
func (f *FakeChannel) FetchSince(cursor uint64) ([]Message, error) {
	f.Cursors = append(f.Cursors, cursor)
	if f.FetchError != nil {
		return nil, f.FetchError
	}

	var out []Message
	for _, m := range f.Inbound {
		if m.Seq > cursor {
			out = append(out, m)
		}
	}
	return out, nil
}

// Send records the text.
func (f *FakeChannel) Send(_ context.Context, text string) error {
	f.SendCalls++
	if f.OnSend != nil {
		f.OnSend(text)
	}
	if err, ok := f.SendErrors[f.SendCalls]; ok {
		return &TransportError{Op: "send", Err: err}
	}
	if f.SendError != nil {
		return &TransportError{Op: "send", Err: f.SendError}
	}
	f.Sent = append(f.Sent, text)
	return nil
}

// PublishReading records the reading.
func (f *FakeChannel) PublishReading(_ context.Context, r Reading) error {
	if f.PublishReadingError != nil {
		return &TransportError{Op: "publish reading", Err: f.PublishReadingError}
	}
	f.Readings = append(f.Readings, r)
	return nil
}

// PublishSystem records the system event.
func (f *FakeChannel) PublishSystem(_ context.Context, event SystemEvent) error {
	if f.PublishSystemError != nil {
		return &TransportError{Op: "publish system", Err: f.PublishSystemError}
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Reset clears recorded traffic and errors.
func (f *FakeChannel) Reset() {
	f.Sent = nil
	f.SendCalls = 0
	f.SendError = nil
	f.SendErrors = nil
	f.Readings = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.PublishReadingError = nil
	f.PublishSystemError = nil
	f.FetchError = nil
	f.Cursors = nil
}
