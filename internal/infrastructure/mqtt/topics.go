package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the smart controller service.
//
// Entity topics carry sensor and actuator traffic between device bridges
// and controllers. Controller topics carry the computed automaton state for
// presentation layers.
const (
	// TopicPrefix is the root of every topic this service uses.
	TopicPrefix = "graylogic"

	// TopicPrefixEntity is the base for entity state and command topics.
	TopicPrefixEntity = TopicPrefix + "/entity"

	// TopicPrefixController is the base for controller state topics.
	TopicPrefixController = TopicPrefix + "/controller"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.EntityState("fan.bedroom")   // graylogic/entity/fan.bedroom/state
//	topics.ControllerState("bedroom")   // graylogic/controller/bedroom/state
type Topics struct{}

// EntityState returns the topic a bridge publishes entity state on.
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixEntity, entityID)
}

// EntityCommand returns the topic commands for an entity are published on.
func (Topics) EntityCommand(entityID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixEntity, entityID)
}

// AllEntityStates matches every entity state topic.
func (Topics) AllEntityStates() string {
	return TopicPrefixEntity + "/+/state"
}

// ControllerState returns the retained topic carrying a controller's state.
func (Topics) ControllerState(controllerID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixController, controllerID)
}

// AllControllerStates matches every controller state topic.
func (Topics) AllControllerStates() string {
	return TopicPrefixController + "/+/state"
}

// SystemStatus returns the service online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/smartctl/status"
}

// ParseEntityStateTopic extracts the entity id from an entity state topic.
func ParseEntityStateTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixEntity+"/")
	if !ok {
		return "", false
	}
	entityID, ok := strings.CutSuffix(rest, "/state")
	if !ok || entityID == "" || strings.Contains(entityID, "/") {
		return "", false
	}
	return entityID, true
}
