package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
)

const (
	namespace = "smartctl"
	subsystem = "controller"

	resultOK    = "ok"
	resultError = "error"
)

// Collector records controller activity as Prometheus series.
//
// Thread Safety:
//   - All methods are safe for concurrent use; every controller goroutine
//     shares one Collector.
type Collector struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	commands       *prometheus.CounterVec
	eventsIgnored  *prometheus.CounterVec
	updatesSkipped *prometheus.CounterVec
	values         *prometheus.GaugeVec
}

var _ controller.Metrics = (*Collector)(nil)

// NewCollector creates a Collector with its own registry. Go runtime and
// process collectors are registered alongside the controller series.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transitions_total",
				Help:      "Total number of controller state transitions",
			},
			[]string{"controller_id", "controller_type", "from", "to"},
		),

		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "commands_total",
				Help:      "Total number of commands sent to controlled entities",
			},
			[]string{"controller_id", "service", "result"},
		),

		eventsIgnored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_ignored_total",
				Help:      "Total number of events with no transition in the current state",
			},
			[]string{"controller_id", "state", "event"},
		),

		updatesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "updates_skipped_total",
				Help:      "Total number of input updates skipped after a handler error",
			},
			[]string{"controller_id"},
		),

		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "value",
				Help:      "Latest value derived by a controller, such as a comfort index",
			},
			[]string{"controller_id", "name"},
		),
	}

	c.registry.MustRegister(
		c.transitions,
		c.commands,
		c.eventsIgnored,
		c.updatesSkipped,
		c.values,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the registry the Collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Transition implements controller.Metrics.
func (c *Collector) Transition(controllerID, controllerType string, from, to controller.State) {
	c.transitions.WithLabelValues(controllerID, controllerType, string(from), string(to)).Inc()
}

// Command implements controller.Metrics.
func (c *Collector) Command(controllerID, service string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	c.commands.WithLabelValues(controllerID, service, result).Inc()
}

// EventIgnored implements controller.Metrics.
func (c *Collector) EventIgnored(controllerID string, state controller.State, ev controller.Event) {
	c.eventsIgnored.WithLabelValues(controllerID, string(state), string(ev)).Inc()
}

// UpdateSkipped implements controller.Metrics.
func (c *Collector) UpdateSkipped(controllerID string) {
	c.updatesSkipped.WithLabelValues(controllerID).Inc()
}

// Value implements controller.Metrics.
func (c *Collector) Value(controllerID, name string, value float64) {
	c.values.WithLabelValues(controllerID, name).Set(value)
}
