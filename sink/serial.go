// Package sink provides transmit sinks for the actuation line protocol:
// a serial link to the controller, and a CAN bus alternative for
// controllers attached that way. One sink is active at a time.
package sink

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// to allow testing
var openPort = func(device string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(device, mode)
}

// writeBacklog bounds how many frames may queue for the port writer. The
// ingestion loop must never block on a stalled link; once the backlog is
// full, frames are dropped and the failure reported.
const writeBacklog = 8

// Serial writes protocol frames to a serial port. Writes are handed to a
// dedicated writer goroutine through a bounded queue so a wedged
// downstream device stalls only the queue, not the caller.
type Serial struct {
	port   serial.Port
	frames chan []byte
	done   chan struct{}

	mu      sync.Mutex
	lastErr error
}

// OpenSerial opens the device at the given baud rate, 8 data bits, one
// stop bit, no parity.
func OpenSerial(device string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(device, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open serial port %s", device)
	}
	log.WithField("device", device).WithField("baud", baud).Info("serial sink opened")

	s := &Serial{
		port:   port,
		frames: make(chan []byte, writeBacklog),
		done:   make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// Write queues one frame. It reports the most recent port-level write
// error, or a queue-full condition when the downstream link is stalled.
// It never blocks. The frame is queued even when a previous error is
// being surfaced, so a transient failure loses only the frame that
// actually failed.
func (s *Serial) Write(frame []byte) error {
	// copy the frame as it is written on another goroutine
	frameCopy := make([]byte, len(frame))
	copy(frameCopy, frame)
	var queueErr error
	select {
	case s.frames <- frameCopy:
	default:
		queueErr = errors.New("serial writer backlogged, frame dropped")
	}

	s.mu.Lock()
	err := s.lastErr
	s.lastErr = nil
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return queueErr
}

func (s *Serial) writer() {
	defer close(s.done)
	for frame := range s.frames {
		if _, err := s.port.Write(frame); err != nil {
			s.mu.Lock()
			s.lastErr = errors.Wrap(err, "serial write")
			s.mu.Unlock()
		}
	}
}

// Close closes the port and waits for the writer to drain. The port is
// closed first so a writer wedged in a write to a stalled device is
// unblocked rather than waited on forever. The caller must guarantee no
// Write races with Close.
func (s *Serial) Close() error {
	err := s.port.Close()
	close(s.frames)
	<-s.done
	return err
}
