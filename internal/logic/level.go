package logic

// LevelThresholds are the fixed classification bands in cm from the sensor.
// FullCm must be below LowCm.
type LevelThresholds struct {
	FullCm int
	LowCm  int
}

// Classify maps a distance to a level. FULL takes precedence over LOW.
// Non-positive distances are a sensor fault convention and classify as
// NORMAL, never FULL.
func Classify(distanceCm int, t LevelThresholds) Level {
	switch {
	case distanceCm > 0 && distanceCm <= t.FullCm:
		return LevelFull
	case distanceCm >= t.LowCm:
		return LevelLow
	default:
		return LevelNormal
	}
}
