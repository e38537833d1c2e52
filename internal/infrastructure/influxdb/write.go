package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementControllerState = "controller_state"
	MeasurementControllerValue = "controller_value"
)

// WriteControllerState records a controller state transition.
//
// Example line:
//
//	controller_state,controller_id=bath-fan,controller_type=exhaust_fan state="ON",is_on=true
func (c *Client) WriteControllerState(controllerID, controllerType, state string, isOn bool) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementControllerState,
		map[string]string{
			"controller_id":   controllerID,
			"controller_type": controllerType,
		},
		map[string]any{
			"state": state,
			"is_on": isOn,
		},
		c.now(),
	))
}

// WriteControllerValue records a value a controller derived from its
// inputs, such as a comfort index or a target fan speed.
func (c *Client) WriteControllerValue(controllerID, name string, value float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementControllerValue,
		map[string]string{
			"controller_id": controllerID,
			"name":          name,
		},
		map[string]any{
			"value": value,
		},
		c.now(),
	))
}
