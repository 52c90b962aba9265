package bridge

import (
	"context"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/enVId-tech/Forza-Telemetry-Interpreter/config"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/forza"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/lineproto"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/motion"
	"github.com/enVId-tech/Forza-Telemetry-Interpreter/sink"
)

// Lifecycle states.
const (
	StateStopped  = "stopped"
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
)

const (
	eventStart   = "start"
	eventStarted = "started"
	eventAbort   = "abort"
	eventStop    = "stop"
	eventStopped = "stopped"
)

// receiveBufSize comfortably holds the 324-byte Car Dash datagram.
const receiveBufSize = 1024

// dataNagInterval is how long the loop stays silent about a dry feed
// before reminding the user to enable Data Out.
const dataNagInterval = 10 * time.Second

// to allow testing
var listenPacket = func(address string) (PacketConn, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(context.Background(), "udp", address)
	if err != nil {
		return nil, err
	}
	return conn.(*net.UDPConn), nil
}

// to allow testing
var openSink = func(cfg config.Config) (Sink, error) {
	if cfg.Sink == config.SinkCAN {
		return sink.OpenCAN(cfg.CANInterface, cfg.CANFrameID)
	}
	return sink.OpenSerial(cfg.SerialPort, cfg.BaudRate)
}

// Bridge owns the receive socket and the transmit sink for the lifetime
// of one running period and drives the receive-decode-transmit-publish
// cycle on its own goroutine.
type Bridge struct {
	cfg   config.Config
	store *StateStore

	machine *fsm.FSM
	conn    PacketConn
	sink    Sink
	stop    chan struct{}
	done    chan struct{}
}

func New(cfg config.Config, store *StateStore) *Bridge {
	b := &Bridge{
		cfg:   cfg,
		store: store,
	}
	b.machine = fsm.NewFSM(StateStopped,
		fsm.Events{
			{Name: eventStart, Src: []string{StateStopped}, Dst: StateStarting},
			{Name: eventStarted, Src: []string{StateStarting}, Dst: StateRunning},
			{Name: eventAbort, Src: []string{StateStarting}, Dst: StateStopped},
			{Name: eventStop, Src: []string{StateRunning}, Dst: StateStopping},
			{Name: eventStopped, Src: []string{StateStopping}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				if e.Src != e.Dst {
					log.WithField("from", e.Src).WithField("to", e.Dst).Debug("bridge state change")
				}
			},
		})
	return b
}

// State reports the lifecycle state.
func (b *Bridge) State() string {
	return b.machine.Current()
}

// Start acquires the socket and the sink and launches the ingestion
// loop. On any acquisition failure everything already acquired is
// released and the bridge returns to stopped.
func (b *Bridge) Start() error {
	ctx := context.Background()
	if err := b.machine.Event(ctx, eventStart); err != nil {
		return errors.Wrap(err, "bridge not stopped")
	}

	conn, err := listenPacket(b.cfg.Addr())
	if err != nil {
		_ = b.machine.Event(ctx, eventAbort)
		return errors.Wrapf(err, "unable to bind UDP listener on %s", b.cfg.Addr())
	}

	snk, err := openSink(b.cfg)
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			log.WithField("err", cerr).Warn("unable to close listener after sink failure")
		}
		_ = b.machine.Event(ctx, eventAbort)
		return errors.Wrap(err, "unable to open transmit sink")
	}

	b.conn = conn
	b.sink = snk
	b.stop = make(chan struct{})
	b.done = make(chan struct{})

	sessionID := uuid.NewString()
	b.store.update(func(s *Snapshot) {
		*s = Snapshot{SessionID: sessionID, Running: true}
	})

	go b.run()

	_ = b.machine.Event(ctx, eventStarted)
	log.WithField("listen", b.cfg.Addr()).
		WithField("session", sessionID).
		Info("telemetry bridge started")
	return nil
}

// Stop cancels the ingestion loop and blocks until it has exited before
// releasing the socket and the sink, then resets the snapshot.
func (b *Bridge) Stop() error {
	ctx := context.Background()
	if err := b.machine.Event(ctx, eventStop); err != nil {
		return errors.Wrap(err, "bridge not running")
	}

	close(b.stop)
	<-b.done

	if err := b.conn.Close(); err != nil {
		log.WithField("err", err).Warn("unable to close UDP listener")
	}
	if err := b.sink.Close(); err != nil {
		log.WithField("err", err).Warn("unable to close transmit sink")
	}
	b.conn = nil
	b.sink = nil

	b.store.update(func(s *Snapshot) {
		*s = Snapshot{}
	})

	_ = b.machine.Event(ctx, eventStopped)
	log.Info("telemetry bridge stopped")
	return nil
}

// run is the ingestion loop: a tight poll with the read deadline as its
// only suspension. Receive errors other than a deadline expiry are
// treated as "no datagram this cycle"; only Stop terminates the loop.
func (b *Bridge) run() {
	defer close(b.done)

	buf := make([]byte, receiveBufSize)
	firstPacket := true
	lastData := time.Now()
	lastNag := time.Now()

	for {
		select {
		case <-b.stop:
			return
		default:
		}

		if err := b.conn.SetReadDeadline(time.Now().Add(b.cfg.PollInterval.Duration)); err != nil {
			continue
		}
		n, addr, err := b.conn.ReadFrom(buf)
		if err != nil {
			now := time.Now()
			if now.Sub(lastData) > dataNagInterval && now.Sub(lastNag) > dataNagInterval {
				log.WithField("listen", b.cfg.Addr()).
					Warn("no telemetry received; check the game's Data Out settings")
				lastNag = now
			}
			continue
		}
		lastData = time.Now()

		if firstPacket {
			firstPacket = false
			log.WithField("from", addr.String()).
				WithField("bytes", n).
				Info("receiving telemetry")
		}

		frame, err := forza.Decode(buf[:n])
		if err != nil {
			// undersized or otherwise malformed: count it, drop it
			b.store.update(func(s *Snapshot) {
				s.PacketCount++
			})
			continue
		}

		b.cycle(frame)
	}
}

// cycle runs one decoded frame through the motion model, the encoder and
// the sink, then publishes the results as a single consistent snapshot.
func (b *Bridge) cycle(frame forza.Frame) {
	now := time.Now()
	active := motion.Active(frame)

	var sample motion.GForceSample
	if active {
		sample = motion.Compute(frame, now)
	} else {
		sample = motion.Neutral(now)
	}

	var line []byte
	if b.cfg.LegacyFrames {
		line = lineproto.EncodeLegacy(sample)
	} else {
		line = lineproto.EncodeExtended(sample, frame)
	}
	writeErr := b.sink.Write(line)

	b.store.update(func(s *Snapshot) {
		s.PacketCount++
		s.Connected = true
		s.Active = active
		s.Frame = frame
		s.GForces = sample
		s.SinkOK = writeErr == nil
	})
}

// reuseAddr lets a restart rebind the port while sockets from a previous
// run linger.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
