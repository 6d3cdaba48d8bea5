// Package mqtt publishes power events and lifecycle events to a broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/pocketgadget/gadgetd/internal/drivers/axp2101"
)

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
)

// WillPayload is the retained last-will message on the system topic.
const WillPayload = "OFFLINE"

// Topics are the topics under one prefix.
type Topics struct {
	Power  string
	System string
}

// TopicsFor returns the topics under prefix, e.g. "gadget/power".
func TopicsFor(prefix string) Topics {
	return Topics{
		Power:  prefix + "/power",
		System: prefix + "/system",
	}
}

// Publisher sends gadget telemetry. Errors are reported to the caller and
// never stop the daemon.
type Publisher interface {
	PublishPower(event PowerEvent) error
	PublishSystem(event SystemEvent) error
	Close() error
}

// ConnectionStatus is implemented by publishers that track a live broker link.
type ConnectionStatus interface {
	IsConnected() bool
}

// PowerEvent is one decoded PMU interrupt reason.
type PowerEvent struct {
	Timestamp time.Time
	Reason    axp2101.Reason
}

// SystemEvent is a daemon lifecycle event for the system topic. Reason is
// set on SHUTDOWN only. A non-nil RawPayload replaces the generated body;
// the daemon uses it to attach a status snapshot.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string
	RawPayload []byte
	Retained   bool
}

// Payload represents the MQTT message payload for a power event.
type Payload struct {
	Power PowerPayload `json:"power"`
}

// PowerPayload contains the power event details.
type PowerPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
}

// FormatPayload creates the JSON payload for a power event.
func FormatPayload(event PowerEvent) ([]byte, error) {
	return json.Marshal(Payload{
		Power: PowerPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Reason.String(),
		},
	})
}

// SystemPayload is the body of a lifecycle event without a snapshot.
type SystemPayload struct {
	System struct {
		Timestamp string `json:"timestamp"`
		Event     string `json:"event"`
		Reason    string `json:"reason,omitempty"`
	} `json:"system"`
}

// FormatSystemPayload encodes event, or returns its RawPayload when set.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	var p SystemPayload
	p.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	p.System.Event = event.Event
	p.System.Reason = event.Reason
	return json.Marshal(p)
}
