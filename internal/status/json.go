package status

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/pocketgadget/gadgetd/internal/events"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string            `json:"event,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Locked        bool              `json:"locked"`
	Display       DisplayJSON       `json:"display"`
	Advert        AdvertJSON        `json:"advert"`
	Healthy       bool              `json:"healthy"`
	Faults        map[string]string `json:"faults,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartTime     string            `json:"start_time"`
	Timestamp     string            `json:"timestamp"`
	MQTT          LinkStatus        `json:"mqtt"`
	Redis         LinkStatus        `json:"redis"`
	Counts        CountsJSON        `json:"event_counts"`
	Config        ConfigJSON        `json:"config"`
}

// DisplayJSON reports the backlight.
type DisplayJSON struct {
	Brightness int `json:"brightness"`
	Millivolts int `json:"millivolts"`
}

// AdvertJSON reports the advertisement randomizer.
type AdvertJSON struct {
	Running     bool   `json:"running"`
	Power       int    `json:"power"`
	PowerDBm    int    `json:"power_dbm"`
	Cycles      uint64 `json:"cycles"`
	LastAddress string `json:"last_address,omitempty"`
	LastMode    string `json:"last_mode,omitempty"`
}

// LinkStatus reports an outbound connection.
type LinkStatus struct {
	Connected bool   `json:"connected"`
	Addr      string `json:"addr"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Window     map[string]int `json:"window"`
	Locked     int            `json:"dropped_while_locked"`
	Power      map[string]int `json:"power"`
	BusDropped uint64         `json:"bus_dropped"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Radio       string `json:"radio"`
	BusCapacity int    `json:"bus_capacity"`
	HoldMs      int64  `json:"hold_ms"`
	Retries     int    `json:"retries"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	window := make(map[string]int, len(snap.Counts.Window))
	for k, n := range snap.Counts.Window {
		window[events.WindowEventKind(k).String()] = n
	}
	power := snap.Counts.Power
	if power == nil {
		power = map[string]int{}
	}

	return StatusInner{
		Locked:        snap.Locked,
		Display:       DisplayJSON{Brightness: snap.Brightness, Millivolts: snap.BrightnessMv},
		Advert:        AdvertJSON(snap.Advert),
		Healthy:       len(snap.Faults) == 0,
		Faults:        snap.Faults,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          LinkStatus{Connected: snap.MQTTConnected, Addr: snap.Config.Broker},
		Redis:         LinkStatus{Connected: snap.RedisConnected, Addr: snap.Config.Redis},
		Counts: CountsJSON{
			Window:     window,
			Locked:     snap.Counts.Dropped,
			Power:      power,
			BusDropped: snap.BusDropped,
		},
		Config: ConfigJSON{
			Radio:       snap.Config.Radio,
			BusCapacity: snap.Config.BusCapacity,
			HoldMs:      snap.Config.HoldMs,
			Retries:     snap.Config.RetryCount,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FaultNames returns the faulted subsystems in order.
func (s Snapshot) FaultNames() []string {
	names := make([]string, 0, len(s.Faults))
	for k := range s.Faults {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
