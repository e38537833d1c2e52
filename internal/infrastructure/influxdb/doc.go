// Package influxdb writes controller telemetry to InfluxDB v2.
//
// Two measurements are written:
//   - controller_state: one point per state transition
//   - controller_value: derived values such as comfort index, target
//     speed and absolute humidity
//
// InfluxDB is optional. Connect returns ErrDisabled when it is turned off
// in config.yaml, and every write method is a no-op on a disconnected
// client.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteControllerState("bath-fan", "exhaust_fan", "ON", true)
package influxdb
