package adc

import "errors"

// Fake is a test double that returns scripted counts per channel.
type Fake struct {
	// Samples holds scripted counts per channel. Each Read consumes the next
	// value; once exhausted the last value repeats.
	Samples map[int][]int

	// ReadError, if set, is returned by every Read.
	ReadError error

	// Reads counts calls per channel.
	Reads map[int]int

	index map[int]int
}

// NewFake creates a Fake with no samples.
func NewFake() *Fake {
	return &Fake{
		Samples: make(map[int][]int),
		Reads:   make(map[int]int),
		index:   make(map[int]int),
	}
}

// Set replaces the scripted samples for a channel and rewinds it.
func (f *Fake) Set(channel int, samples ...int) {
	f.Samples[channel] = samples
	f.index[channel] = 0
}

// Read returns the next scripted sample.
func (f *Fake) Read(channel int) (int, error) {
	f.Reads[channel]++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	s := f.Samples[channel]
	if len(s) == 0 {
		return 0, errors.New("no samples configured")
	}
	i := f.index[channel]
	v := s[i]
	if i < len(s)-1 {
		f.index[channel] = i + 1
	}
	return v, nil
}
