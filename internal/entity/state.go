package entity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/climate"
)

// Well-known state values.
const (
	StateOn          = "on"
	StateOff         = "off"
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// Well-known attribute keys.
const (
	AttrFriendlyName      = "friendly_name"
	AttrUnitOfMeasurement = "unit_of_measurement"
	AttrDeviceClass       = "device_class"
	AttrPercentage        = "percentage"
	AttrPercentageStep    = "percentage_step"
)

// State is the current value of an entity as reported by the host.
type State struct {
	EntityID    string         `json:"entity_id"`
	Value       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Context     string         `json:"context,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
}

// Domain returns the part of the entity id before the first dot
// ("fan.bedroom" → "fan").
func (s State) Domain() string {
	return Domain(s.EntityID)
}

// Domain returns the domain part of an entity id.
func Domain(entityID string) string {
	domain, _, found := strings.Cut(entityID, ".")
	if !found {
		return ""
	}
	return domain
}

// Name returns the friendly name of the entity, falling back to its id.
func (s State) Name() string {
	if name, ok := s.Attributes[AttrFriendlyName].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

// Unit returns the unit_of_measurement attribute, or "" when absent.
func (s State) Unit() string {
	unit, _ := s.Attributes[AttrUnitOfMeasurement].(string)
	return unit
}

// Available reports whether the state carries a usable reading.
func (s State) Available() bool {
	switch s.Value {
	case "", StateUnknown, StateUnavailable:
		return false
	}
	return true
}

// IsOn reports whether the entity reads "on".
func (s State) IsOn() bool { return s.Value == StateOn }

// IsOff reports whether the entity reads "off".
func (s State) IsOff() bool { return s.Value == StateOff }

// IsOnOff reports whether the value is one of "on" or "off".
func (s State) IsOnOff() bool { return s.IsOn() || s.IsOff() }

// Float parses the state value as a number.
func (s State) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrNotNumeric, s.EntityID, s.Value)
	}
	return v, nil
}

// Temperature parses the value as a temperature in the sensor's reported
// unit. Sensors without a recognised unit_of_measurement are assumed to
// report in fallback.
func (s State) Temperature(fallback climate.Unit) (climate.Temperature, error) {
	v, err := s.Float()
	if err != nil {
		return climate.Temperature{}, err
	}
	unit, perr := climate.ParseUnit(s.Unit())
	if perr != nil {
		unit = fallback
	}
	return climate.Temperature{Value: v, Unit: unit}, nil
}

// AttrFloat returns a numeric attribute, or def when the attribute is absent
// or not numeric.
func (s State) AttrFloat(key string, def float64) float64 {
	switch v := s.Attributes[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// AttrString returns a string attribute, or "" when absent.
func (s State) AttrString(key string) string {
	v, _ := s.Attributes[key].(string)
	return v
}

// Clone returns a copy of the state with its own attribute map.
func (s State) Clone() State {
	if s.Attributes != nil {
		attrs := make(map[string]any, len(s.Attributes))
		for k, v := range s.Attributes {
			attrs[k] = v
		}
		s.Attributes = attrs
	}
	return s
}

// Change is one notification on the input change feed.
// Old is nil the first time an entity is seen.
type Change struct {
	EntityID string
	Old      *State
	New      *State
}

// Command is a named action sent to an actuator.
type Command struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entity_id"`
	Domain    string         `json:"domain"`
	Service   string         `json:"service"`
	Data      map[string]any `json:"data,omitempty"`
	Context   string         `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Reader looks up the current value of an entity.
type Reader interface {
	Get(entityID string) (State, bool)
}

// Subscriber delivers change notifications for a set of entities.
// The returned function cancels the subscription.
type Subscriber interface {
	Subscribe(entityIDs []string, fn func(Change)) (cancel func())
}

// Caller dispatches commands to actuators.
type Caller interface {
	Call(ctx context.Context, cmd Command) error
}
