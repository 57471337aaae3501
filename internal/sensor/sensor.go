// Package sensor reads ambient temperature and humidity with hardware
// abstraction. The real implementation drives a DHT22 through the Linux GPIO
// character device; the simulated and fake implementations need no hardware.
package sensor

import (
	"errors"
	"fmt"
)

// ErrFault is returned (possibly wrapped) when the sensor produced no valid
// reading: timeout, checksum mismatch, or a value outside the sensor range.
var ErrFault = errors.New("sensor fault")

// Reading is one ambient sample.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
}

// Sensor reads the ambient sensor.
type Sensor interface {
	// Read returns the current reading or an error wrapping ErrFault.
	Read() (Reading, error)

	// Close releases hardware resources.
	Close() error
}

// DHT22 measurement range.
const (
	minTemperature = -40.0
	maxTemperature = 80.0
	minHumidity    = 0.0
	maxHumidity    = 100.0
)

// Validate rejects readings outside the DHT22 measurement range.
func (r Reading) Validate() error {
	if r.Temperature < minTemperature || r.Temperature > maxTemperature {
		return fmt.Errorf("%w: temperature %.1f out of range", ErrFault, r.Temperature)
	}
	if r.Humidity < minHumidity || r.Humidity > maxHumidity {
		return fmt.Errorf("%w: humidity %.1f out of range", ErrFault, r.Humidity)
	}
	return nil
}

// DefaultPin is the BCM pin the DHT22 data line is wired to.
const DefaultPin = 4
