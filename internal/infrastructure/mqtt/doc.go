// Package mqtt maintains the daemon's publish-only broker connection.
//
// The client connects with a retained Last Will on the system status
// topic, announces itself there after every (re)connection, carries
// the retained state and health documents the mirror publishes, and
// sends a graceful offline status on Close. Nothing is ever
// subscribed: the CEC bus is the daemon's only input, and MQTT traffic
// flows strictly outward to dashboards and whatever home automation
// cares to listen.
//
// Reconnection is delegated to paho's auto-reconnect with the backoff
// range taken from configuration. Connection transitions surface
// through SetOnConnect and SetOnDisconnect so the composition root can
// log them and reseed retained topics after a broker outage.
//
//	broker, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer broker.Close()
//
//	topic := broker.Topics().DeviceState("tv")
//	broker.Publish(topic, []byte(`{"power":"on"}`), 1, true)
package mqtt
