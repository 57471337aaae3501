package sensor

import (
	"math"
	"math/rand/v2"
	"time"
)

// Simulated produces a daily sinusoidal temperature/humidity curve with a
// little noise, for boards without a DHT22 attached.
type Simulated struct {
	now func() time.Time
	rng *rand.Rand
}

// NewSimulated returns a simulated sensor. seed makes the noise reproducible.
func NewSimulated(now func() time.Time, seed uint64) *Simulated {
	return &Simulated{
		now: now,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Read returns the simulated reading for the current time of day.
func (s *Simulated) Read() (Reading, error) {
	t := s.now()
	hour := float64(t.Hour()) + float64(t.Minute())/60

	temp := 24.0 + 6.0*math.Sin(hour/24*2*math.Pi)
	temp += (s.rng.Float64() - 0.5) // ±0.5 °C

	hum := 55.0 + 20.0*math.Sin((hour+6)/24*2*math.Pi)
	hum += (s.rng.Float64() - 0.5) * 20 // ±10 %
	hum = math.Max(15, math.Min(95, hum))

	return Reading{
		Temperature: math.Round(temp*10) / 10,
		Humidity:    math.Round(hum*10) / 10,
	}, nil
}

// Close is a no-op.
func (s *Simulated) Close() error {
	return nil
}
