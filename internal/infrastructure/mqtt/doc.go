// Package mqtt provides the broker connection for the smart controller
// service.
//
// MQTT is the only transport between controllers and the devices they
// watch and drive:
//
//	device bridges ──state──▶ graylogic/entity/{id}/state ──▶ entity.MQTTFeed
//	entity.MQTTCaller ──▶ graylogic/entity/{id}/command ──▶ device bridges
//	engine ──retained──▶ graylogic/controller/{id}/state ──▶ dashboards
//
// The client reconnects with exponential backoff and restores its
// subscriptions afterwards. A retained Last Will on
// graylogic/system/smartctl/status reports an unexpected disconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntityStates(), 1, feed.HandleMessage)
package mqtt
