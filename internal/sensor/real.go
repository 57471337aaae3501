//go:build linux

package sensor

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// DHT22 reads a DHT22/AM2302 on a GPIO line using the Linux GPIO character
// device and kernel edge timestamps.
type DHT22 struct {
	chip *gpiocdev.Chip
	pin  int

	// last valid reading, reused when polled faster than dhtMinInterval
	last   Reading
	lastAt time.Time
	now    func() time.Time
}

// NewDHT22 opens the GPIO chip for a DHT22 on the given BCM pin.
func NewDHT22(pin int) (*DHT22, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &DHT22{chip: chip, pin: pin, now: time.Now}, nil
}

// Read performs one start-signal/response exchange and decodes the frame.
func (d *DHT22) Read() (Reading, error) {
	if !d.lastAt.IsZero() && d.now().Sub(d.lastAt) < dhtMinInterval {
		return d.last, nil
	}

	edges, err := d.capture()
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrFault, err)
	}

	r, err := decodeFrame(edges)
	if err != nil {
		return Reading{}, err
	}
	d.last = r
	d.lastAt = d.now()
	return r, nil
}

// capture sends the start signal, then records edges until the frame is
// complete or the read window closes. The line is requested once and
// reconfigured in place: the sensor answers 20-40µs after release, too soon
// for a second line request.
func (d *DHT22) capture() ([]edge, error) {
	c := newEdgeCollector()
	handler := func(evt gpiocdev.LineEvent) {
		c.add(edge{rising: evt.Type == gpiocdev.LineEventRisingEdge, at: evt.Timestamp})
	}

	// Start signal: hold the line low for at least 1ms.
	line, err := d.chip.RequestLine(d.pin, gpiocdev.AsOutput(0), gpiocdev.WithEventHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", d.pin, err)
	}
	time.Sleep(2 * time.Millisecond)

	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithBothEdges); err != nil {
		line.Close()
		return nil, fmt.Errorf("release pin %d: %w", d.pin, err)
	}

	// A full frame takes under 6ms.
	select {
	case <-c.complete():
	case <-time.After(20 * time.Millisecond):
	}
	if err := line.Close(); err != nil {
		return nil, fmt.Errorf("close pin %d: %w", d.pin, err)
	}
	return c.snapshot(), nil
}

// Close releases GPIO resources.
func (d *DHT22) Close() error {
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			return fmt.Errorf("close chip: %w", err)
		}
	}
	return nil
}
