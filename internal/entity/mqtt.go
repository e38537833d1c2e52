package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/mqtt"
)

// StateMessage is the payload published on graylogic/entity/{entity_id}/state
// by device bridges.
type StateMessage struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Context    string         `json:"context,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// CommandMessage is the payload published on graylogic/entity/{entity_id}/command.
// Bridges echo Context back on the resulting StateMessage.
type CommandMessage struct {
	ID        string         `json:"id"`
	EntityID  string         `json:"entity_id"`
	Domain    string         `json:"domain"`
	Service   string         `json:"service"`
	Data      map[string]any `json:"data,omitempty"`
	Context   string         `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// MQTTSubscriber is the subset of the MQTT client used by MQTTFeed.
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTPublisher is the subset of the MQTT client used by MQTTCaller.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTFeed keeps a Store up to date from entity state messages.
type MQTTFeed struct {
	client MQTTSubscriber
	store  *Store
	qos    byte
}

// NewMQTTFeed creates a feed that applies received states to store.
func NewMQTTFeed(client MQTTSubscriber, store *Store, qos byte) *MQTTFeed {
	return &MQTTFeed{client: client, store: store, qos: qos}
}

// Start subscribes to every entity state topic.
func (f *MQTTFeed) Start() error {
	if err := f.client.Subscribe(mqtt.Topics{}.AllEntityStates(), f.qos, f.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to entity states: %w", err)
	}
	return nil
}

// Stop unsubscribes from entity state topics.
func (f *MQTTFeed) Stop() error {
	return f.client.Unsubscribe(mqtt.Topics{}.AllEntityStates())
}

// HandleMessage decodes a state message and applies it to the store.
// The entity id is taken from the topic when the payload omits it.
func (f *MQTTFeed) HandleMessage(topic string, payload []byte) error {
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidMessage, topic, err)
	}

	topicID, ok := mqtt.ParseEntityStateTopic(topic)
	if msg.EntityID == "" {
		if !ok {
			return fmt.Errorf("%w: no entity id in %s", ErrInvalidMessage, topic)
		}
		msg.EntityID = topicID
	} else if ok && topicID != msg.EntityID {
		return fmt.Errorf("%w: topic %s carries entity %s", ErrInvalidMessage, topic, msg.EntityID)
	}

	return f.store.Apply(State{
		EntityID:    msg.EntityID,
		Value:       strings.TrimSpace(msg.State),
		Attributes:  msg.Attributes,
		Context:     msg.Context,
		LastChanged: msg.Timestamp,
	})
}

// MQTTCaller publishes commands to entity command topics.
type MQTTCaller struct {
	client MQTTPublisher
	qos    byte
	now    func() time.Time
}

// NewMQTTCaller creates a Caller backed by MQTT.
func NewMQTTCaller(client MQTTPublisher, qos byte) *MQTTCaller {
	return &MQTTCaller{client: client, qos: qos, now: time.Now}
}

// Call publishes cmd. A missing id or timestamp is filled in.
func (c *MQTTCaller) Call(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(cmd.EntityID); err != nil {
		return err
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Domain == "" {
		cmd.Domain = Domain(cmd.EntityID)
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = c.now().UTC()
	}

	payload, err := json.Marshal(CommandMessage(cmd))
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	if err := c.client.Publish(mqtt.Topics{}.EntityCommand(cmd.EntityID), payload, c.qos, false); err != nil {
		return fmt.Errorf("publishing %s.%s to %s: %w", cmd.Domain, cmd.Service, cmd.EntityID, err)
	}
	return nil
}
