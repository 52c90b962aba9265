package bridge

import (
	"net"
	"time"
)

// Sink is the transmit side of the pipeline: one protocol frame in,
// success or failure out. Implementations must not block the ingestion
// loop on a stalled downstream link.
type Sink interface {
	Write(frame []byte) error
	Close() error
}

// PacketConn is the receive-socket surface the ingestion loop uses.
// *net.UDPConn satisfies it.
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}
