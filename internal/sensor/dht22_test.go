package sensor

import (
	"errors"
	"testing"
	"time"
)

// frameEdges builds the edge sequence a DHT22 emits for the given 5 bytes.
func frameEdges(frame [5]byte) []edge {
	var edges []edge
	at := time.Duration(0)
	add := func(rising bool, width time.Duration) {
		edges = append(edges, edge{rising: rising, at: at})
		at += width
	}

	// Response: 80µs low, 80µs high
	add(false, 80*time.Microsecond)
	add(true, 80*time.Microsecond)

	for _, b := range frame {
		for bit := 7; bit >= 0; bit-- {
			add(false, 50*time.Microsecond)
			if b&(1<<bit) != 0 {
				add(true, 70*time.Microsecond)
			} else {
				add(true, 26*time.Microsecond)
			}
		}
	}
	add(false, 50*time.Microsecond)
	add(true, 0)
	return edges
}

func withChecksum(b0, b1, b2, b3 byte) [5]byte {
	return [5]byte{b0, b1, b2, b3, b0 + b1 + b2 + b3}
}

func TestDecodeFramePositive(t *testing.T) {
	// 65.2 %RH = 0x028C, 35.1 °C = 0x015F
	r, err := decodeFrame(frameEdges(withChecksum(0x02, 0x8C, 0x01, 0x5F)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Humidity != 65.2 {
		t.Errorf("Humidity: got %v, want 65.2", r.Humidity)
	}
	if r.Temperature != 35.1 {
		t.Errorf("Temperature: got %v, want 35.1", r.Temperature)
	}
}

func TestDecodeFrameNegativeTemperature(t *testing.T) {
	// -10.1 °C = sign bit | 0x0065
	r, err := decodeFrame(frameEdges(withChecksum(0x01, 0xF4, 0x80, 0x65)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Temperature != -10.1 {
		t.Errorf("Temperature: got %v, want -10.1", r.Temperature)
	}
	if r.Humidity != 50.0 {
		t.Errorf("Humidity: got %v, want 50.0", r.Humidity)
	}
}

func TestDecodeFrameChecksumMismatch(t *testing.T) {
	frame := withChecksum(0x02, 0x8C, 0x01, 0x5F)
	frame[4]++

	_, err := decodeFrame(frameEdges(frame))
	if !errors.Is(err, ErrFault) {
		t.Errorf("expected ErrFault, got %v", err)
	}
}

func TestDecodeFrameShort(t *testing.T) {
	edges := frameEdges(withChecksum(0x02, 0x8C, 0x01, 0x5F))

	_, err := decodeFrame(edges[:30])
	if !errors.Is(err, ErrFault) {
		t.Errorf("expected ErrFault for short frame, got %v", err)
	}
}

func TestDecodeFrameOutOfRange(t *testing.T) {
	// 120.0 °C = 0x04B0, beyond the DHT22 range
	_, err := decodeFrame(frameEdges(withChecksum(0x01, 0xF4, 0x04, 0xB0)))
	if !errors.Is(err, ErrFault) {
		t.Errorf("expected ErrFault for out-of-range value, got %v", err)
	}
}

func TestHighPulsesIgnoresLeadingRise(t *testing.T) {
	edges := []edge{
		{rising: false, at: 0},
		{rising: true, at: 10},
		{rising: false, at: 40},
		{rising: true, at: 50},
	}
	pulses := highPulses(edges)
	if len(pulses) != 1 || pulses[0] != 30 {
		t.Errorf("got %v, want [30]", pulses)
	}
}

func TestEdgeCollectorCompletesOnFullFrame(t *testing.T) {
	c := newEdgeCollector()
	edges := frameEdges(withChecksum(0x02, 0x8c, 0x01, 0x5f))

	for _, e := range edges[:frameEdgeCount-1] {
		c.add(e)
	}
	select {
	case <-c.complete():
		t.Fatal("complete before the last edge")
	default:
	}

	// Everything past the frame, including a stray trailing edge, is ignored.
	for _, e := range edges[frameEdgeCount-1:] {
		c.add(e)
	}
	c.add(edge{rising: false, at: time.Second})

	select {
	case <-c.complete():
	default:
		t.Fatal("expected complete after a full frame")
	}

	got := c.snapshot()
	if len(got) != frameEdgeCount {
		t.Fatalf("edges: got %d, want %d", len(got), frameEdgeCount)
	}
	r, err := decodeFrame(got)
	if err != nil {
		t.Fatalf("decode collected frame: %v", err)
	}
	if r.Humidity != 65.2 || r.Temperature != 35.1 {
		t.Errorf("got %+v, want 35.1°C 65.2%%", r)
	}
}

func TestEdgeCollectorPartialFrame(t *testing.T) {
	c := newEdgeCollector()
	for _, e := range frameEdges(withChecksum(1, 2, 3, 4))[:10] {
		c.add(e)
	}
	if _, err := decodeFrame(c.snapshot()); !errors.Is(err, ErrFault) {
		t.Errorf("partial frame: got %v, want ErrFault", err)
	}
}
