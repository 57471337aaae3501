package sensor

import "errors"

// FakeSensor is a test double that returns scripted readings.
type FakeSensor struct {
	// Samples contains scripted results to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read.
	Reads int

	// Closed tracks if Close was called
	Closed bool
}

// Sample is a single scripted result. A non-nil Err is returned instead of
// the reading.
type Sample struct {
	Reading Reading
	Err     error
}

// NewFakeSensor creates a FakeSensor with the given samples.
func NewFakeSensor(samples ...Sample) *FakeSensor {
	return &FakeSensor{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeSensor) Read() (Reading, error) {
	f.Reads++

	if len(f.Samples) == 0 {
		return Reading{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	if sample.Err != nil {
		return Reading{}, sample.Err
	}
	return sample.Reading, nil
}

// Close marks the sensor as closed.
func (f *FakeSensor) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample.
func (f *FakeSensor) Reset() {
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
