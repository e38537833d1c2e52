// Package climate provides the numeric derivations used by the fan and
// light controllers.
//
// Everything here is a pure function of its arguments:
//
//   - ComfortIndex: summer simmer index in °F
//   - AbsoluteHumidity: water vapour density in g/m³
//   - MapRange: clamped linear mapping between two ranges
//   - Quantize: snaps a fan speed onto the actuator's step size
//
// Temperatures read from sensors carry their own unit. Use Temperature.To
// to bring them into the unit a formula expects:
//
//	t := climate.Temperature{Value: 26.5, Unit: climate.Celsius}
//	ssi := climate.ComfortIndex(t.To(climate.Fahrenheit).Value, 55)
package climate
