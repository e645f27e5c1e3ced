// Package adc provides analog sample sources for the conductivity probes
// and the thermistor divider.
package adc

// Reader returns raw counts for a numbered input channel. Counts are in the
// range [0, MaxCounts] of the configured converter resolution.
type Reader interface {
	Read(channel int) (int, error)
}

// Input binds a Reader to one channel. It satisfies the single-input
// interfaces used by the sensor and logic packages.
type Input struct {
	R       Reader
	Channel int
}

// Read returns one raw sample from the bound channel.
func (in Input) Read() (int, error) {
	return in.R.Read(in.Channel)
}
