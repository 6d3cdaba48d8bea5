package advert

import (
	"fmt"
	"sync"
)

// FakeRadio records radio calls for tests.
type FakeRadio struct {
	mu sync.Mutex

	// Calls holds one line per call, e.g. "addr", "power -12", "configure undirected 17", "start".
	Calls    []string
	Profiles []Profile
	pending  Profile

	// Fail maps a call name ("addr", "power", "configure", "start", "stop") to
	// the error it returns for its next FailCount attempts.
	Fail      map[string]error
	FailCount map[string]int
}

// NewFakeRadio creates an empty FakeRadio.
func NewFakeRadio() *FakeRadio {
	return &FakeRadio{Fail: map[string]error{}, FailCount: map[string]int{}}
}

// FailNext makes the next n calls of name return err. A negative n fails forever.
func (f *FakeRadio) FailNext(name string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail[name] = err
	f.FailCount[name] = n
}

func (f *FakeRadio) record(name, line string) error {
	f.Calls = append(f.Calls, line)
	err, ok := f.Fail[name]
	if !ok {
		return nil
	}
	switch n := f.FailCount[name]; {
	case n < 0:
		return err
	case n > 0:
		f.FailCount[name] = n - 1
		return err
	}
	return nil
}

func (f *FakeRadio) SetRandomAddress(addr [6]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Address = addr
	return f.record("addr", fmt.Sprintf("addr % x", addr[:]))
}

func (f *FakeRadio) SetTxPower(dBm int8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range powerTable {
		if v == dBm {
			f.pending.Power = PowerLevel(i)
		}
	}
	return f.record("power", fmt.Sprintf("power %d", dBm))
}

func (f *FakeRadio) Configure(mode ConnMode, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Mode = mode
	f.pending.Payload = append([]byte(nil), payload...)
	return f.record("configure", fmt.Sprintf("configure %s %d", mode, len(payload)))
}

func (f *FakeRadio) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("start", "start"); err != nil {
		return err
	}
	f.Profiles = append(f.Profiles, f.pending)
	return nil
}

func (f *FakeRadio) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("stop", "stop")
}

// Snapshot returns copies of the recorded calls and started profiles.
func (f *FakeRadio) Snapshot() ([]string, []Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...), append([]Profile(nil), f.Profiles...)
}

// Starts counts successful Start calls.
func (f *FakeRadio) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Profiles)
}
