package logic

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Curve coefficients for the cubic voltage-to-TDS fit of the probe.
const (
	curveA = 133.42
	curveB = -255.86
	curveC = 857.39

	// tempCoefficient is the fractional conductivity change per °C from 25°C.
	tempCoefficient = 0.02
	referenceC      = 25.0
)

// TdsParams configures one acquisition pipeline.
type TdsParams struct {
	VRef        float64
	MaxCounts   int
	KValue      float64
	MaxValidPPM float64
	ECRatio     float64
	ECMax       float64
	WarmupReads int
	BatchSize   int
	KeepSize    int
	DryHigh     int
	DryLow      int
	NoiseMaxSD  float64
	AnomalyPct  float64
}

// Sampler returns one raw analog sample.
type Sampler interface {
	Read() (int, error)
}

// TdsChannel runs the acquisition pipeline for one probe and carries its
// last valid values between calls.
type TdsChannel struct {
	id     ChannelID
	in     Sampler
	stab   *Stability
	params TdsParams

	state TdsChannelState
	batch []int
}

// NewTdsChannel creates a pipeline for probe id reading from in, gated by
// the shared stability flags.
func NewTdsChannel(id ChannelID, in Sampler, stab *Stability, params TdsParams) *TdsChannel {
	return &TdsChannel{
		id:     id,
		in:     in,
		stab:   stab,
		params: params,
		state:  TdsChannelState{Stable: true},
		batch:  make([]int, params.BatchSize),
	}
}

// ID returns the probe name.
func (c *TdsChannel) ID() ChannelID { return c.id }

// State returns the current channel state without sampling.
func (c *TdsChannel) State() TdsChannelState { return c.state }

// Acquire runs one pass of the pipeline. tempC is the probe's temperature
// (already defaulted if the sensor was invalid).
//
// The returned state is always usable. A non-nil error explains why the
// sample was not committed; the state then carries the last valid values.
func (c *TdsChannel) Acquire(tempC float64, pumpOn bool, now time.Time) (TdsChannelState, error) {
	if !c.stab.Ready(c.id, now) {
		c.state.Stable = false
		return c.hold(fmt.Errorf("%w: %v remaining", ErrStabilizing, c.stab.Remaining(c.id, now)))
	}
	c.state.Stable = true

	for i := 0; i < c.params.WarmupReads; i++ {
		if _, err := c.in.Read(); err != nil {
			return c.hold(fmt.Errorf("warm-up read: %w", err))
		}
	}
	for i := range c.batch {
		v, err := c.in.Read()
		if err != nil {
			return c.hold(fmt.Errorf("sample read: %w", err))
		}
		c.batch[i] = v
	}

	mean, sd := TrimmedStats(c.batch, c.params.KeepSize)
	raw := int(mean)
	c.state.RawADC = raw
	c.state.Voltage = float64(raw) * c.params.VRef / float64(c.params.MaxCounts)

	if pumpOn && sd > c.params.NoiseMaxSD {
		return c.hold(fmt.Errorf("%w: sd %.1f", ErrNoisyBatch, sd))
	}

	if raw >= c.params.DryHigh {
		c.state.ProbeWet = false
		return c.hold(fmt.Errorf("%w: adc %d", ErrProbeDry, raw))
	}
	if raw <= c.params.DryLow {
		c.state.ProbeWet = false
		c.commit(0, 0)
		return c.state, fmt.Errorf("%w: adc %d", ErrProbeNotSubmerged, raw)
	}
	c.state.ProbeWet = true

	coeff := 1 + tempCoefficient*(tempC-referenceC)
	if coeff <= 0 {
		return c.hold(fmt.Errorf("%w: compensation at %.1f°C", ErrImplausibleReading, tempC))
	}
	tds := TdsFromVoltage(c.state.Voltage/coeff, c.params.KValue)

	if pumpOn && anomalous(tds, c.state.LastValidTds, c.params.AnomalyPct) {
		return c.hold(fmt.Errorf("%w: %.0f ppm from %d ppm", ErrAnomalousJump, tds, c.state.LastValidTds))
	}

	if tds < 0 {
		tds = 0
	}
	if tds > c.params.MaxValidPPM {
		return c.hold(fmt.Errorf("%w: %.0f ppm above %.0f", ErrImplausibleReading, tds, c.params.MaxValidPPM))
	}

	ppm := int(tds)
	ec := tds / c.params.ECRatio
	ec = math.Max(0, math.Min(ec, c.params.ECMax))
	c.commit(ppm, ec)
	return c.state, nil
}

func (c *TdsChannel) hold(err error) (TdsChannelState, error) {
	c.state.TdsPPM = c.state.LastValidTds
	c.state.ECMicroS = c.state.LastValidEC
	return c.state, err
}

func (c *TdsChannel) commit(ppm int, ec float64) {
	c.state.TdsPPM = ppm
	c.state.ECMicroS = ec
	c.state.LastValidTds = ppm
	c.state.LastValidEC = ec
}

// TdsFromVoltage applies the probe's cubic curve and calibration constant k.
func TdsFromVoltage(v, k float64) float64 {
	return (curveA*v*v*v + curveB*v*v + curveC*v) * k
}

// TrimmedStats sorts a copy of samples and returns the mean and population
// standard deviation of the centered keep values. keep is clamped to
// [1, len(samples)].
func TrimmedStats(samples []int, keep int) (mean, sd float64) {
	n := len(samples)
	if n == 0 {
		return 0, 0
	}
	if keep <= 0 || keep > n {
		keep = n
	}

	sorted := make([]int, n)
	copy(sorted, samples)
	sort.Ints(sorted)

	start := (n - keep) / 2
	core := sorted[start : start+keep]

	sum := 0
	for _, v := range core {
		sum += v
	}
	mean = float64(sum) / float64(keep)

	var variance float64
	for _, v := range core {
		d := float64(v) - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(keep))
}

// anomalous reports a relative change above pct from a positive last value.
func anomalous(tds float64, last int, pct float64) bool {
	if last <= 0 {
		return false
	}
	change := math.Abs(tds-float64(last)) / float64(last) * 100
	return change > pct
}
