//go:build !linux

package sensor

import "errors"

// DHT22 is not available on non-Linux platforms.
type DHT22 struct{}

// NewDHT22 returns an error on non-Linux platforms.
func NewDHT22(pin int) (*DHT22, error) {
	return nil, errors.New("sensor: dht22 not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (d *DHT22) Read() (Reading, error) {
	return Reading{}, ErrFault
}

// Close is not implemented on non-Linux platforms.
func (d *DHT22) Close() error {
	return nil
}
