package sensor

import (
	"fmt"
	"sync"
	"time"
)

const (
	// dhtBits is the length of one DHT22 frame.
	dhtBits = 40

	// dhtOneThreshold separates a 0 bit (~26µs high) from a 1 bit (~70µs high).
	dhtOneThreshold = 50 * time.Microsecond

	// dhtMinInterval is the fastest the DHT22 may be polled.
	dhtMinInterval = 2 * time.Second

	// frameEdgeCount is the response (2 edges), 40 bits (2 edges each) and the
	// trailing falling edge.
	frameEdgeCount = 2*(dhtBits+1) + 1
)

// edge is one transition seen on the data line.
type edge struct {
	rising bool
	at     time.Duration
}

// edgeCollector gathers edges from the GPIO event goroutine and signals once
// a full frame has arrived. Edges past the frame are ignored.
type edgeCollector struct {
	mu    sync.Mutex
	edges []edge
	done  chan struct{}
}

func newEdgeCollector() *edgeCollector {
	return &edgeCollector{
		edges: make([]edge, 0, frameEdgeCount),
		done:  make(chan struct{}),
	}
}

func (c *edgeCollector) add(e edge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.edges) == frameEdgeCount {
		return
	}
	c.edges = append(c.edges, e)
	if len(c.edges) == frameEdgeCount {
		close(c.done)
	}
}

// complete is closed when a full frame has been collected.
func (c *edgeCollector) complete() <-chan struct{} {
	return c.done
}

func (c *edgeCollector) snapshot() []edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]edge(nil), c.edges...)
}

// highPulses returns the widths of every high period (rising edge followed by
// a falling edge) in the edge sequence.
func highPulses(edges []edge) []time.Duration {
	var pulses []time.Duration
	var riseAt time.Duration
	high := false
	for _, e := range edges {
		switch {
		case e.rising:
			riseAt = e.at
			high = true
		case high:
			pulses = append(pulses, e.at-riseAt)
			high = false
		}
	}
	return pulses
}

// decodeFrame turns the edges captured after the start signal into a reading.
// The sensor's 80µs response pulse precedes the data, so only the last 40
// high pulses are data bits.
func decodeFrame(edges []edge) (Reading, error) {
	pulses := highPulses(edges)
	if len(pulses) < dhtBits {
		return Reading{}, fmt.Errorf("%w: short frame (%d bits)", ErrFault, len(pulses))
	}
	pulses = pulses[len(pulses)-dhtBits:]

	var frame [5]byte
	for i, p := range pulses {
		frame[i/8] <<= 1
		if p > dhtOneThreshold {
			frame[i/8] |= 1
		}
	}

	sum := frame[0] + frame[1] + frame[2] + frame[3]
	if sum != frame[4] {
		return Reading{}, fmt.Errorf("%w: checksum mismatch (%#02x != %#02x)", ErrFault, sum, frame[4])
	}

	hum := float64(uint16(frame[0])<<8|uint16(frame[1])) / 10
	temp := float64(uint16(frame[2]&0x7f)<<8|uint16(frame[3])) / 10
	if frame[2]&0x80 != 0 {
		temp = -temp
	}

	r := Reading{Temperature: temp, Humidity: hum}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}
