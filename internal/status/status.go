// Package status provides a thread-safe status tracker for the gadgetd daemon.
// It is read by the HTTP handlers, the MQTT lifecycle events and the Redis mirror.
package status

import (
	"sync"
	"time"

	"github.com/pocketgadget/gadgetd/internal/advert"
	"github.com/pocketgadget/gadgetd/internal/clock"
	"github.com/pocketgadget/gadgetd/internal/drivers/axp2101"
	"github.com/pocketgadget/gadgetd/internal/events"
)

// Config contains daemon configuration for display.
type Config struct {
	Radio       string
	Broker      string
	Redis       string
	HTTPAddr    string
	BusCapacity int
	HoldMs      int64
	RetryCount  int
}

// AdvertInfo is the advertisement randomizer as last reported.
type AdvertInfo struct {
	Running     bool
	Power       int
	PowerDBm    int
	Cycles      uint64
	LastAddress string
	LastMode    string
}

// Counts tallies bus traffic seen by the dispatcher.
type Counts struct {
	Window  [events.NumWindowEventKinds]int
	Dropped int            // window events discarded while locked
	Power   map[string]int // by reason name
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Locked         bool
	Brightness     int
	BrightnessMv   int
	Advert         AdvertInfo
	Counts         Counts
	BusDropped     uint64
	Faults         map[string]string
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	RedisConnected bool
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	version uint64
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Counts:    Counts{Power: map[string]int{}},
			Faults:    map[string]string{},
		},
	}
}

func (t *Tracker) change(fn func(*Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	t.version++
	t.mu.Unlock()
}

// Version increases on every change. Mirrors compare it to skip idle ticks.
func (t *Tracker) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// SetLocked records the screen lock.
func (t *Tracker) SetLocked(locked bool) {
	t.change(func(s *Snapshot) { s.Locked = locked })
}

// SetBrightness records the backlight step and its voltage.
func (t *Tracker) SetBrightness(step, mv int) {
	t.change(func(s *Snapshot) {
		s.Brightness = step
		s.BrightnessMv = mv
	})
}

// RecordWindow counts a window event. Undelivered events were dropped by the lock.
func (t *Tracker) RecordWindow(kind events.WindowEventKind, delivered bool) {
	t.change(func(s *Snapshot) {
		if !delivered {
			s.Counts.Dropped++
			return
		}
		if int(kind) < len(s.Counts.Window) {
			s.Counts.Window[kind]++
		}
	})
}

// RecordPower counts a power event.
func (t *Tracker) RecordPower(r axp2101.Reason) {
	t.change(func(s *Snapshot) { s.Counts.Power[r.String()]++ })
}

// SetBusDropped records the event bus drop counter.
func (t *Tracker) SetBusDropped(n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.BusDropped != n {
		t.snap.BusDropped = n
		t.version++
	}
}

// SetAdvert records the randomizer state.
func (t *Tracker) SetAdvert(st advert.State) {
	t.change(func(s *Snapshot) {
		s.Advert = AdvertInfo{
			Running:  st.Running,
			Power:    int(st.Power),
			PowerDBm: int(st.Power.DBm()),
			Cycles:   st.Cycles,
		}
		if st.Cycles > 0 {
			s.Advert.LastAddress = st.Last.AddressString()
			s.Advert.LastMode = st.Last.Mode.String()
		}
	})
}

// SetFault records that a subsystem stopped. A nil err clears it.
func (t *Tracker) SetFault(subsystem string, err error) {
	t.change(func(s *Snapshot) {
		if err == nil {
			delete(s.Faults, subsystem)
			return
		}
		s.Faults[subsystem] = err.Error()
	})
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.change(func(s *Snapshot) { s.MQTTConnected = connected })
}

// SetRedisConnected sets the Redis connection status.
func (t *Tracker) SetRedisConnected(connected bool) {
	t.change(func(s *Snapshot) { s.RedisConnected = connected })
}

// Snapshot returns a point-in-time copy of the daemon state.
// Now is StartTime plus the monotonic time elapsed since clock.Start.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts.Power = make(map[string]int, len(t.snap.Counts.Power))
	for k, v := range t.snap.Counts.Power {
		s.Counts.Power[k] = v
	}
	s.Faults = make(map[string]string, len(t.snap.Faults))
	for k, v := range t.snap.Faults {
		s.Faults[k] = v
	}
	t.mu.RUnlock()
	s.Now = s.StartTime.Add(clock.Since())
	return s
}
