package logic

// minEfficiencyInputPPM is the input TDS floor below which the relative
// efficiency formula is not meaningful.
const minEfficiencyInputPPM = 10

// HealthTracker derives filter efficiency and counts completed pump cycles.
type HealthTracker struct {
	health FilterHealth
}

// NewHealthTracker creates a tracker with a restored use count.
func NewHealthTracker(useLimit, useCount int) *HealthTracker {
	if useCount < 0 {
		useCount = 0
	}
	return &HealthTracker{health: FilterHealth{UseCount: useCount, UseLimit: useLimit}}
}

// Update recomputes efficiency from the current probe values.
func (h *HealthTracker) Update(tdsIn, tdsOut int, inWet, outWet bool) FilterHealth {
	h.health.EfficiencyPct = Efficiency(tdsIn, tdsOut, inWet, outWet)
	return h.health
}

// Efficiency returns the cleaning efficiency in percent, or 0 when either
// probe is dry or the input is below the 10 ppm floor.
func Efficiency(tdsIn, tdsOut int, inWet, outWet bool) float64 {
	if !inWet || !outWet || tdsIn <= minEfficiencyInputPPM {
		return 0
	}
	eff := float64(tdsIn-tdsOut) / float64(tdsIn) * 100
	if eff < 0 {
		return 0
	}
	if eff > 100 {
		return 100
	}
	return eff
}

// RecordUse counts one completed ON->OFF cycle.
func (h *HealthTracker) RecordUse() {
	h.health.UseCount++
}

// Reset zeroes the use count.
func (h *HealthTracker) Reset() {
	h.health.UseCount = 0
}

// LimitReached reports whether the filter needs replacing.
func (h *HealthTracker) LimitReached() bool {
	return h.health.UseCount >= h.health.UseLimit
}

// Health returns the current values.
func (h *HealthTracker) Health() FilterHealth {
	return h.health
}
