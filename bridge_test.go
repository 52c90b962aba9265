package bridge

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enVId-tech/Forza-Telemetry-Interpreter/config"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/forza"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type connStub struct {
	packets chan []byte

	mu     sync.Mutex
	closed bool
}

func newConnStub() *connStub {
	return &connStub{packets: make(chan []byte, 16)}
}

func (c *connStub) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case pkt := <-c.packets:
		n := copy(p, pkt)
		return n, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}, nil
	case <-time.After(time.Millisecond):
		return 0, nil, timeoutErr{}
	}
}

func (c *connStub) SetReadDeadline(time.Time) error {
	return nil
}

func (c *connStub) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *connStub) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type sinkStub struct {
	mu       sync.Mutex
	frames   []string
	writeErr error
	closed   bool
}

func (s *sinkStub) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames = append(s.frames, string(frame))
	return nil
}

func (s *sinkStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sinkStub) lastFrame() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return ""
	}
	return s.frames[len(s.frames)-1]
}

func (s *sinkStub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func withStubs(conn *connStub, snk *sinkStub) func() {
	origListen, origSink := listenPacket, openSink
	listenPacket = func(string) (PacketConn, error) {
		return conn, nil
	}
	openSink = func(config.Config) (Sink, error) {
		return snk, nil
	}
	return func() {
		listenPacket, openSink = origListen, origSink
	}
}

// activeFrame decodes to speed well over 1 km/h with 1G of braking.
func activeFrame() []byte {
	return forza.MarshalDash(forza.Frame{
		EngineRPM:         4000,
		AccelLongitudinal: -9.81,
		VelocityX:         10,
		Throttle:          255,
		Brake:             128,
	})
}

func idleFrame() []byte {
	return forza.MarshalDash(forza.Frame{
		EngineRPM:     800,
		AccelLateral:  5, // must be ignored while idle
		AccelVertical: 5,
	})
}

func waitForPackets(t *testing.T, store *StateStore, n int) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return store.Snapshot().PacketCount >= n
	}, time.Second, time.Millisecond)
	return store.Snapshot()
}

func TestStartStop(t *testing.T) {
	conn, snk := newConnStub(), &sinkStub{}
	defer withStubs(conn, snk)()

	store := NewStateStore()
	b := New(config.Default(), store)
	assert.Equal(t, StateStopped, b.State())

	require.NoError(t, b.Start())
	assert.Equal(t, StateRunning, b.State())
	snap := store.Snapshot()
	assert.True(t, snap.Running)
	assert.NotEmpty(t, snap.SessionID)

	require.NoError(t, b.Stop())
	assert.Equal(t, StateStopped, b.State())
	assert.True(t, conn.isClosed())
	assert.True(t, snk.isClosed())

	// counters zeroed, flags cleared
	assert.Equal(t, Snapshot{}, store.Snapshot())
}

func TestStartWhileRunning(t *testing.T) {
	conn, snk := newConnStub(), &sinkStub{}
	defer withStubs(conn, snk)()

	b := New(config.Default(), NewStateStore())
	require.NoError(t, b.Start())
	assert.Error(t, b.Start())
	require.NoError(t, b.Stop())
}

func TestStopWhileStopped(t *testing.T) {
	b := New(config.Default(), NewStateStore())
	assert.Error(t, b.Stop())
}

func TestActivePipeline(t *testing.T) {
	conn, snk := newConnStub(), &sinkStub{}
	defer withStubs(conn, snk)()

	store := NewStateStore()
	b := New(config.Default(), store)
	require.NoError(t, b.Start())
	defer func() {
		require.NoError(t, b.Stop())
	}()

	conn.packets <- activeFrame()
	snap := waitForPackets(t, store, 1)

	assert.True(t, snap.Connected)
	assert.True(t, snap.Active)
	assert.True(t, snap.SinkOK)
	assert.Equal(t, 1.0, snap.GForces.Longitudinal)
	assert.Equal(t, 1.0, snap.GForces.Vertical)
	assert.Equal(t, uint8(255), snap.Frame.Throttle)

	frame := snk.lastFrame()
	assert.True(t, strings.HasPrefix(frame, "1.000,0.000,1.000,100.0,50.2,"), frame)
	assert.True(t, strings.HasSuffix(frame, "\n"))
}

func TestIdleSendsNeutral(t *testing.T) {
	conn, snk := newConnStub(), &sinkStub{}
	defer withStubs(conn, snk)()

	store := NewStateStore()
	b := New(config.Default(), store)
	require.NoError(t, b.Start())
	defer func() {
		require.NoError(t, b.Stop())
	}()

	conn.packets <- idleFrame()
	snap := waitForPackets(t, store, 1)

	assert.False(t, snap.Active)
	assert.Equal(t, 0.0, snap.GForces.Lateral, "motion model bypassed while idle")
	assert.Equal(t, 1.0, snap.GForces.Vertical)
	assert.True(t, strings.HasPrefix(snk.lastFrame(), "0.000,0.000,1.000,"),
		"neutral sample still transmitted while idle")
}

func TestLegacyFrames(t *testing.T) {
	conn, snk := newConnStub(), &sinkStub{}
	defer withStubs(conn, snk)()

	cfg := config.Default()
	cfg.LegacyFrames = true
	store := NewStateStore()
	b := New(cfg, store)
	require.NoError(t, b.Start())
	defer func() {
		require.NoError(t, b.Stop())
	}()

	conn.packets <- activeFrame()
	waitForPackets(t, store, 1)
	assert.Equal(t, "1.000,0.000,1.000\n", snk.lastFrame())
}

func TestShortDatagramCountedAndDropped(t *testing.T) {
	conn, snk := newConnStub(), &sinkStub{}
	defer withStubs(conn, snk)()

	store := NewStateStore()
	b := New(config.Default(), store)
	require.NoError(t, b.Start())
	defer func() {
		require.NoError(t, b.Stop())
	}()

	conn.packets <- make([]byte, 10)
	snap := waitForPackets(t, store, 1)
	assert.False(t, snap.Connected, "undersized datagram must not mark connected")
	assert.Equal(t, "", snk.lastFrame(), "nothing transmitted for a dropped datagram")

	// loop keeps polling: a valid datagram afterwards goes through
	conn.packets <- activeFrame()
	snap = waitForPackets(t, store, 2)
	assert.True(t, snap.Connected)
}

func TestSinkFailureDoesNotStopIngestion(t *testing.T) {
	conn, snk := newConnStub(), &sinkStub{}
	snk.writeErr = errors.New("link stalled")
	defer withStubs(conn, snk)()

	store := NewStateStore()
	b := New(config.Default(), store)
	require.NoError(t, b.Start())
	defer func() {
		require.NoError(t, b.Stop())
	}()

	conn.packets <- activeFrame()
	snap := waitForPackets(t, store, 1)
	assert.False(t, snap.SinkOK)

	snk.mu.Lock()
	snk.writeErr = nil
	snk.mu.Unlock()
	conn.packets <- activeFrame()
	snap = waitForPackets(t, store, 2)
	assert.True(t, snap.SinkOK)
}

func TestStartBindFailure(t *testing.T) {
	origListen, origSink := listenPacket, openSink
	sinkOpened := false
	listenPacket = func(string) (PacketConn, error) {
		return nil, errors.New("address in use")
	}
	openSink = func(config.Config) (Sink, error) {
		sinkOpened = true
		return &sinkStub{}, nil
	}
	defer func() {
		listenPacket, openSink = origListen, origSink
	}()

	b := New(config.Default(), NewStateStore())
	assert.Error(t, b.Start())
	assert.Equal(t, StateStopped, b.State())
	assert.False(t, sinkOpened, "no partial acquisition on bind failure")
}

func TestStartSinkFailure(t *testing.T) {
	conn := newConnStub()
	origListen, origSink := listenPacket, openSink
	listenPacket = func(string) (PacketConn, error) {
		return conn, nil
	}
	openSink = func(config.Config) (Sink, error) {
		return nil, errors.New("no such device")
	}
	defer func() {
		listenPacket, openSink = origListen, origSink
	}()

	b := New(config.Default(), NewStateStore())
	assert.Error(t, b.Start())
	assert.Equal(t, StateStopped, b.State())
	assert.True(t, conn.isClosed(), "socket released after sink failure")
}
