// Package metrics exports the filter telemetry as Prometheus series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/water-filter/internal/engine"
	"github.com/sweeney/water-filter/internal/logic"
)

const namespace = "water_filter"

var levels = []logic.Level{logic.LevelFull, logic.LevelNormal, logic.LevelLow}

// Metrics holds the collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	distance   prometheus.Gauge
	level      *prometheus.GaugeVec
	tds        *prometheus.GaugeVec
	ec         *prometheus.GaugeVec
	temp       *prometheus.GaugeVec
	probeWet   *prometheus.GaugeVec
	efficiency prometheus.Gauge
	useCount   prometheus.Gauge
	useLimit   prometheus.Gauge
	pumpOn     prometheus.Gauge
	alarmOn    prometheus.Gauge
	stable     prometheus.Gauge
	events     *prometheus.CounterVec
	commands   *prometheus.CounterVec
	mqttUp     prometheus.Gauge
}

// New registers every collector.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "distance_cm", Help: "Distance from the ultrasonic sensor to the water surface.",
		}),
		level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "water_level", Help: "1 for the current tank level classification.",
		}, []string{"level"}),
		tds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tds_ppm", Help: "Compensated total dissolved solids.",
		}, []string{"channel"}),
		ec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ec_microsiemens", Help: "Electrical conductivity derived from TDS.",
		}, []string{"channel"}),
		temp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "temperature_celsius", Help: "Water temperature used for compensation.",
		}, []string{"channel"}),
		probeWet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "probe_in_water", Help: "1 when the TDS probe is submerged.",
		}, []string{"channel"}),
		efficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "efficiency_percent", Help: "Share of dissolved solids removed by the filter.",
		}),
		useCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "use_count", Help: "Completed pump cycles since the last reset.",
		}),
		useLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "use_limit", Help: "Pump cycles before the filter needs replacing.",
		}),
		pumpOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pump_on", Help: "1 when the pump relay is energised.",
		}),
		alarmOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "alarm_on", Help: "1 when the buzzer is sounding.",
		}),
		stable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tds_stable", Help: "1 when both TDS channels are past their settling window.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total", Help: "Control events by type.",
		}, []string{"type"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total", Help: "Operator commands by outcome.",
		}, []string{"command", "result"}),
		mqttUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mqtt_connected", Help: "1 when the broker connection is up.",
		}),
	}

	m.reg.MustRegister(
		m.distance, m.level, m.tds, m.ec, m.temp, m.probeWet,
		m.efficiency, m.useCount, m.useLimit, m.pumpOn, m.alarmOn, m.stable,
		m.events, m.commands, m.mqttUp,
	)
	return m
}

// Observe copies a telemetry snapshot into the gauges.
func (m *Metrics) Observe(s engine.TelemetrySnapshot) {
	m.distance.Set(float64(s.DistanceCm))
	for _, l := range levels {
		m.level.WithLabelValues(string(l)).Set(b2f(s.Level == l))
	}

	in, out := string(logic.ChannelInput), string(logic.ChannelOutput)
	m.tds.WithLabelValues(in).Set(float64(s.TdsInput.TdsPPM))
	m.tds.WithLabelValues(out).Set(float64(s.TdsOutput.TdsPPM))
	m.ec.WithLabelValues(in).Set(s.TdsInput.ECMicroS)
	m.ec.WithLabelValues(out).Set(s.TdsOutput.ECMicroS)
	m.temp.WithLabelValues(in).Set(s.TempInputC)
	m.temp.WithLabelValues(out).Set(s.TempOutputC)
	m.probeWet.WithLabelValues(in).Set(b2f(s.TdsInput.ProbeWet))
	m.probeWet.WithLabelValues(out).Set(b2f(s.TdsOutput.ProbeWet))

	m.efficiency.Set(s.Health.EfficiencyPct)
	m.useCount.Set(float64(s.Health.UseCount))
	m.useLimit.Set(float64(s.Health.UseLimit))
	m.pumpOn.Set(b2f(s.Control.PumpOn))
	m.alarmOn.Set(b2f(s.Control.AlarmOn))
	m.stable.Set(b2f(s.Control.TdsPipelineStable))
}

// RecordEvents counts control events.
func (m *Metrics) RecordEvents(events []logic.Event) {
	for _, e := range events {
		m.events.WithLabelValues(string(e.Type)).Inc()
	}
}

// RecordCommand counts a command outcome.
func (m *Metrics) RecordCommand(r logic.CommandResult) {
	result := "accepted"
	if !r.Accepted {
		result = "rejected"
	}
	m.commands.WithLabelValues(string(r.Command), result).Inc()
}

// SetMQTTConnected records broker connectivity.
func (m *Metrics) SetMQTTConnected(up bool) {
	m.mqttUp.Set(b2f(up))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
