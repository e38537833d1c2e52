package engine

import "github.com/nerrad567/gray-logic-smartctl/internal/controller"

// valueSink forwards controller metrics to the configured collector and
// derived values to InfluxDB as well.
type valueSink struct {
	metrics   controller.Metrics
	telemetry Telemetry
}

func (e *Engine) valueSink() controller.Metrics {
	return valueSink{metrics: e.deps.Metrics, telemetry: e.deps.Telemetry}
}

func (s valueSink) Transition(controllerID, controllerType string, from, to controller.State) {
	if s.metrics != nil {
		s.metrics.Transition(controllerID, controllerType, from, to)
	}
}

func (s valueSink) Command(controllerID, service string, err error) {
	if s.metrics != nil {
		s.metrics.Command(controllerID, service, err)
	}
}

func (s valueSink) EventIgnored(controllerID string, state controller.State, ev controller.Event) {
	if s.metrics != nil {
		s.metrics.EventIgnored(controllerID, state, ev)
	}
}

func (s valueSink) UpdateSkipped(controllerID string) {
	if s.metrics != nil {
		s.metrics.UpdateSkipped(controllerID)
	}
}

func (s valueSink) Value(controllerID, name string, value float64) {
	if s.metrics != nil {
		s.metrics.Value(controllerID, name, value)
	}
	if s.telemetry != nil {
		s.telemetry.WriteControllerValue(controllerID, name, value)
	}
}
