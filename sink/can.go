package sink

import (
	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CANBus is the subset of the bus used by the sink.
type CANBus interface {
	Publish(can.Frame) error
	Disconnect() error
}

// to allow testing
var newBus = func(ifname string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(ifname)
}

// CAN transmits protocol frames over a CAN bus, chunked into successive
// 8-byte data frames on a single ID. The newline terminating each line
// doubles as the chunk-stream delimiter for the consumer.
type CAN struct {
	bus     CANBus
	frameID uint32
}

// OpenCAN attaches to the named CAN interface.
func OpenCAN(ifname string, frameID uint32) (*CAN, error) {
	bus, err := newBus(ifname)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open CAN interface %s", ifname)
	}
	log.WithField("interface", ifname).WithField("canID", frameID).Info("CAN sink opened")
	return &CAN{bus: bus, frameID: frameID}, nil
}

func (c *CAN) Write(frame []byte) error {
	for len(frame) > 0 {
		n := len(frame)
		if n > 8 {
			n = 8
		}
		f := can.Frame{
			ID:     c.frameID,
			Length: uint8(n),
		}
		copy(f.Data[:], frame[:n])
		if err := c.bus.Publish(f); err != nil {
			return errors.Wrap(err, "unable to publish actuation chunk")
		}
		frame = frame[n:]
	}
	return nil
}

func (c *CAN) Close() error {
	return c.bus.Disconnect()
}
