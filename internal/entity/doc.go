// Package entity models the sensors and actuators that controllers read
// and command.
//
// An entity is identified by a "domain.object_id" string such as
// "fan.bedroom" or "binary_sensor.hall_motion". Its State carries a string
// value, free-form attributes and the context tag of the command that caused
// it, if any.
//
// The controller runtime depends only on three small contracts:
//
//   - Reader: current-value lookup
//   - Subscriber: change feed delivering (old, new) pairs
//   - Caller: command dispatch
//
// Store implements Reader and Subscriber in memory. MQTTFeed keeps a Store
// current from graylogic/entity/+/state, and MQTTCaller publishes commands
// to graylogic/entity/{entity_id}/command.
package entity
