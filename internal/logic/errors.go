package logic

import (
	"errors"

	"github.com/sweeney/water-filter/internal/sensor"
)

// Error taxonomy. None of these are fatal: acquisition errors mean the
// channel held its last valid values, command errors mean nothing changed.
var (
	ErrSensorTimeout      = sensor.ErrSensorTimeout
	ErrSensorDisconnected = sensor.ErrSensorDisconnected
	ErrImplausibleReading = sensor.ErrImplausibleReading

	ErrStabilizing       = errors.New("stabilizing after pump change")
	ErrNoisyBatch        = errors.New("noisy sample batch")
	ErrAnomalousJump     = errors.New("anomalous tds jump")
	ErrProbeDry          = errors.New("probe dry or shorted")
	ErrProbeNotSubmerged = errors.New("probe not submerged")
	ErrCommandRejected   = errors.New("command rejected")
)
