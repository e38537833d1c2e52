package climate

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a temperature unit.
type Unit string

// Supported temperature units. Values match the unit_of_measurement
// attribute reported by sensors.
const (
	Celsius    Unit = "°C"
	Fahrenheit Unit = "°F"
)

// ParseUnit accepts the common spellings of a temperature unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "°"))) {
	case "C", "CELSIUS":
		return Celsius, nil
	case "F", "FAHRENHEIT":
		return Fahrenheit, nil
	default:
		return "", fmt.Errorf("climate: unknown temperature unit %q", s)
	}
}

// Temperature is a reading together with the unit it was reported in.
type Temperature struct {
	Value float64
	Unit  Unit
}

// To converts the temperature into unit. An empty unit on either side is
// treated as "already in the right unit".
func (t Temperature) To(unit Unit) Temperature {
	if t.Unit == unit || t.Unit == "" || unit == "" {
		return Temperature{Value: t.Value, Unit: unit}
	}
	if unit == Fahrenheit {
		return Temperature{Value: t.Value*9/5 + 32, Unit: Fahrenheit}
	}
	return Temperature{Value: (t.Value - 32) * 5 / 9, Unit: Celsius}
}

// ComfortIndex returns the summer simmer index for a dry-bulb temperature
// in °F and a relative humidity in percent. The result is in °F.
func ComfortIndex(tempF, relHumidity float64) float64 {
	return 1.98*(tempF-(0.55-0.0055*relHumidity)*(tempF-58)) - 56.83
}

// ComfortIndexIn computes the summer simmer index and returns it in unit.
func ComfortIndexIn(temp Temperature, relHumidity float64, unit Unit) float64 {
	ssi := ComfortIndex(temp.To(Fahrenheit).Value, relHumidity)
	return Temperature{Value: ssi, Unit: Fahrenheit}.To(unit).Value
}

// AbsoluteHumidity returns the absolute humidity in g/m³ for a temperature
// in °C and a relative humidity in percent.
func AbsoluteHumidity(tempC, relHumidity float64) float64 {
	return relHumidity * 6.112 * 2.1674 * math.Exp(17.67*tempC/(tempC+243.5)) / (tempC + 273.15)
}

// Range is a closed numeric interval.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range, inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

type mapOptions struct {
	low  *float64
	high *float64
}

// MapOption adjusts how MapRange treats values outside the source range.
type MapOption func(*mapOptions)

// WithLowDefault sets the value returned when the input is below the source range.
func WithLowDefault(v float64) MapOption {
	return func(o *mapOptions) { o.low = &v }
}

// WithHighDefault sets the value returned when the input is above the source range.
func WithHighDefault(v float64) MapOption {
	return func(o *mapOptions) { o.high = &v }
}

// MapRange maps value from source onto target.
//
// Values below source.Min return the low default (target.Min when unset),
// values above source.Max return the high default (target.Max when unset),
// and values inside the range are linearly interpolated. The result never
// extrapolates past target.
func MapRange(value float64, source, target Range, opts ...MapOption) float64 {
	var o mapOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case value < source.Min:
		if o.low != nil {
			return *o.low
		}
		return target.Min
	case value > source.Max:
		if o.high != nil {
			return *o.high
		}
		return target.Max
	}

	span := source.Max - source.Min
	if span == 0 {
		return target.Min
	}
	return target.Min + (value-source.Min)/span*(target.Max-target.Min)
}

// defaultStep is the step of a fan that only knows on and off.
const defaultStep = 100

// Quantize rounds speed down onto a multiple of step. A non-positive step
// is treated as a plain on/off fan.
func Quantize(speed, step float64) int {
	if step <= 0 {
		step = defaultStep
	}
	snapped := math.Floor(speed/step) * step
	return int(math.Round(snapped*1000) / 1000)
}
