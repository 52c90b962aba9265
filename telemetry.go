// Package bridge receives Forza Horizon telemetry over UDP and streams
// derived motion-platform signals to an actuator controller. The
// ingestion loop, motion derivation and shared reporting state live
// here; packet decoding, the line protocol and the transmit transports
// are subpackages.
package bridge

import (
	"sync"

	"github.com/enVId-tech/Forza-Telemetry-Interpreter/forza"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/motion"
)

// Snapshot is the cross-goroutine view of the pipeline: the latest
// decoded frame and derived sample plus run/connection flags. The
// ingestion loop is the sole writer; reporting consumers take copies.
type Snapshot struct {
	SessionID   string              `json:"session_id"`
	Running     bool                `json:"running"`
	Connected   bool                `json:"connected"`
	PacketCount int                 `json:"packet_count"`
	Active      bool                `json:"active"`
	SinkOK      bool                `json:"sink_ok"`
	Frame       forza.Frame         `json:"frame"`
	GForces     motion.GForceSample `json:"g_forces"`
}

// StateStore holds the snapshot behind a mutex. Construct one in the
// orchestrator and hand it to both the bridge and the reporting layer;
// it is deliberately not a package-level singleton.
type StateStore struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

// Snapshot returns a consistent copy; a reader never observes a frame
// paired with a sample from a different cycle.
func (s *StateStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// update applies fn under the lock. The lock is held only for the copy,
// never across receive, decode or transmit.
func (s *StateStore) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
}
