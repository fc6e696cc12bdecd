package mqtt

import (
	"encoding/json"
	"time"
)

// statusMessage is the JSON body published to the system status topic,
// retained so late subscribers always see the current liveness.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (m statusMessage) encode() []byte {
	b, _ := json.Marshal(m)
	return b
}

func statusNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// onlineStatus announces the daemon after every successful (re)connection.
func onlineStatus(clientID string) statusMessage {
	return statusMessage{
		Status:    "online",
		ClientID:  clientID,
		Timestamp: statusNow(),
	}
}

// offlineStatus is published by Close ahead of a clean disconnect.
func offlineStatus(clientID string) statusMessage {
	return statusMessage{
		Status:    "offline",
		ClientID:  clientID,
		Reason:    "graceful_shutdown",
		Timestamp: statusNow(),
	}
}

// willStatus is registered as the Last Will. The broker publishes it on
// the daemon's behalf when the connection dies without a DISCONNECT, so
// its timestamp is the connection time, not the death time.
func willStatus(clientID string) statusMessage {
	return statusMessage{
		Status:    "offline",
		ClientID:  clientID,
		Reason:    "unexpected_disconnect",
		Timestamp: statusNow(),
	}
}
